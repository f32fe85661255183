package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"heatfem/app"
	"heatfem/material"
	"heatfem/solver/linear"
)

func main() {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "problem configuration (.json, .yaml)")
	flag.StringVar(&opts.SettingsPath, "settings", "conf/config.ini", "application settings (.ini)")
	flag.StringVar(&opts.Solver, "solver", "", "linear solver: cholesky, lu, qr, cg")
	flag.IntVar(&opts.Threads, "threads", 0, "assembly workers")
	flag.StringVar(&opts.LogLevel, "log-level", "", "trace, debug, info, warn, error")
	flag.StringVar(&opts.MetricsPath, "metrics", "", "metrics output (.csv, .json)")
	flag.BoolVar(&opts.VTK, "vtk", false, "write VTK output")
	flag.BoolVar(&opts.Plot, "plot", false, "write PNG plots")
	flag.StringVar(&opts.ExportMtx, "export-mtx", "", "directory for Matrix Market export of H, C and P")
	flag.BoolVar(&opts.BuildOnly, "build-only", false, "assemble without solving")
	flag.BoolVar(&opts.Cache, "cache", false, "reuse assembled matrices between runs")
	flag.BoolVar(&opts.Serve, "serve", false, "start the websocket server")
	list := flag.Bool("list", false, "list linear solvers and material presets")
	flag.Parse()

	if *list {
		for _, info := range linear.Infos() {
			fmt.Printf("solver   %-9s %s\n", info.Name, info.Description)
		}
		for _, name := range material.Names() {
			fmt.Printf("material %s\n", name)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.New(opts).Execute(ctx)
	stop()
	os.Exit(int(code))
}
