// Command gojshost runs WebAssembly binaries compiled with
// `GOARCH=wasm GOOS=js` against this module's host bridge.
package main

import "os"

func main() {
	os.Exit(Execute())
}
