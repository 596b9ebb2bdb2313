package main

import "github.com/vietddude/interviewer/internal/cli"

func main() {
	cli.Execute()
}
