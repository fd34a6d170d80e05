package main

import (
	"github.com/datasud/idgo/internal/cli"
	"github.com/datasud/idgo/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger()
}

func main() {
	cli.Execute()
}
