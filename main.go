package main

import (
	"github.com/sjzar/scribe/cmd/scribe"
)

func main() {
	scribe.Execute()
}
