package main

import "os"

var defaultEnviron = os.Environ

// environ is swapped in tests.
var environ = defaultEnviron
