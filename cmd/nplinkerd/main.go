package main

import (
	"flag"
	"os"

	"github.com/NPLinker/nplinker/internal/auth"
	"github.com/NPLinker/nplinker/internal/conn"
	"github.com/NPLinker/nplinker/internal/demo"
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/pkg"
)

func main() {
	tables_path := flag.String("tables", "", "path to the table descriptor json")
	use_demo := flag.Bool("demo", false, "serve the generated example dataset")
	demo_size := flag.Int("demo-size", 10, "items per table in the example dataset")
	port := flag.Int("port", 7085, "listening port")
	should_log := flag.Bool("log", true, "print logs")
	show_debug_logs := flag.Bool("dbg", false, "show debug logs")

	flag.Parse()

	var tables []*schema.Table
	if *use_demo {
		tables = demo.Tables(*demo_size, 0)
	} else {
		if *tables_path == "" {
			pkg.FatalLog("Must either provide a table descriptor file or use demo mode")
		}
		data, err := os.ReadFile(*tables_path)
		if err != nil {
			pkg.FatalLog(err)
		}
		tables, err = schema.ParseTables(data)
		if err != nil {
			pkg.FatalLog(err)
		}
	}

	guard := auth.NewGuard(os.Getenv("NPLINKER_SECRET"))

	server, err := conn.NewServer(tables, guard, conn.LogOptions{
		Should_log:      *should_log,
		Show_debug_logs: *show_debug_logs,
	})
	if err != nil {
		pkg.FatalLog(err)
	}

	server.Listen(*port)
}
