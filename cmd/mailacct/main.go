package main

import "github.com/lu-zhengda/mailacct/internal/cli"

func main() {
	cli.Execute()
}
