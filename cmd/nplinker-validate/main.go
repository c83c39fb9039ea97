package main

import (
	"fmt"
	"os"
	"path"

	"github.com/NPLinker/nplinker/internal/schema"
)

func main() {
	args := os.Args
	var tables_path string

	if len(args) > 1 {
		tables_path = args[1]
	} else {
		tables_path = "./tables.json"
	}

	if !path.IsAbs(tables_path) {
		cwd, _ := os.Getwd()
		tables_path = path.Join(cwd, tables_path)
	}

	fmt.Printf("Checking %s for errors\n", tables_path)

	data, err := os.ReadFile(tables_path)
	if err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		return
	}

	tables, err := schema.ParseTables(data)
	if err != nil {
		fmt.Printf("Invalid descriptors; %s\n", err.Error())
		return
	}

	if _, err := schema.NewSchema(tables); err != nil {
		fmt.Printf("Invalid descriptors; %s\n", err.Error())
		return
	}

	fmt.Println("Descriptor checks successful: tables and join graph are valid")
}
