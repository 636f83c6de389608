package main

// The API server. Dependencies are assembled by the dig container in di/dig.
func main() {
	startWithDig()
}
