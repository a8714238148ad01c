package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"polstokes/pkg/config"
	"polstokes/pkg/imageset"
	"polstokes/pkg/pipeline"
	"polstokes/pkg/stokes"
	"polstokes/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "polstokes.yaml", "Path to the YAML configuration file")
	inputDir := flag.String("input", "", "Directory containing the raw exposures (overrides config)")
	outputDir := flag.String("output", "", "Directory receiving the products (overrides config)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *inputDir != "" {
		cfg.Input.Directory = *inputDir
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Processing.NumCores > 0 {
		runtime.GOMAXPROCS(cfg.Processing.NumCores)
	}

	background, err := cfg.BackgroundRegion()
	if err != nil {
		log.Fatalf("Invalid background region: %v", err)
	}
	crop, err := cfg.CropRegion()
	if err != nil {
		log.Fatalf("Invalid crop region: %v", err)
	}
	table, err := stokes.LoadCurveTable(cfg.Transmittance.CurveTable)
	if err != nil {
		log.Fatalf("Failed to load throughput curves: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("STOKES PARAMETERS FROM POLARIZER IMAGES")
	fmt.Println("================================")

	params := &pipeline.Params{
		Instrument: cfg.Instrument(),
		Background: background,
		BinSize:    cfg.Processing.BinSize,
		Method:     imageset.Method(cfg.Processing.BackgroundMethod),
		Wave:       cfg.WaveGrid(),
		Throughput: table,
		MaskRatio:  cfg.Processing.MaskRatio,
		Verbose:    cfg.Output.Verbose,
	}

	fmt.Println("Starting standard reduction...")
	startTime := time.Now()
	res, err := pipeline.NewStandard(params).Run()
	if err != nil {
		log.Fatalf("Reduction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nReduction completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Println(res)

	out := pipeline.Output{
		Dir:       cfg.Output.Directory,
		Stretch:   visualization.Stretch(cfg.Output.Stretch),
		SavePNG:   cfg.Output.SavePNG,
		SavePlots: cfg.Output.SavePlots,
		SaveFITS:  cfg.Output.SaveFITS,
		Crop:      crop,
	}
	written, err := out.Save(res, params.Wave, table)
	if err != nil {
		log.Printf("Warning: Failed to save outputs: %v", err)
	}
	if len(written) > 0 {
		fmt.Printf("\n%d files saved to: %s\n", len(written), cfg.Output.Directory)
	}
	if err != nil {
		os.Exit(1)
	}
}
