package main

import (
	"fmt"
	"os"
	osx "os"
)

func main() {
	fmt.Println("start")
	os.Exit(1) // want "прямой вызов os.Exit в функции main запрещен"

	defer func() {
		osx.Exit(2) // want "прямой вызов os.Exit в функции main запрещен"
	}()
}

func helper() {
	os.Exit(3)
}

type app struct{}

func (app) main() {
	os.Exit(4)
}
