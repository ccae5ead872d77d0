// judgepkg imports a zipped problem package into a server config file.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"oj-judge/core"
)

func main() {
	archivePath := flag.String("archive", "", "path to the problem package zip")
	configPath := flag.String("config", "config.json", "path to the server configuration file to update")
	caseDir := flag.String("case-dir", "./problem-data", "directory to write extracted test case files under")
	flag.Parse()

	if *archivePath == "" {
		log.Fatal("-archive is required")
	}

	data, err := os.ReadFile(*archivePath)
	if err != nil {
		log.Fatalf("read archive: %v", err)
	}

	problem, err := core.ImportProblemArchive(data, *caseDir)
	if err != nil {
		log.Fatalf("import archive: %v", err)
	}

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("read config: %v", err)
	}
	var cfg core.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}

	replaced := false
	for i, p := range cfg.Problems {
		if p.ID == problem.ID {
			cfg.Problems[i] = problem
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Problems = append(cfg.Problems, problem)
	}

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		log.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(*configPath, out, 0o644); err != nil {
		log.Fatalf("write config: %v", err)
	}

	log.Printf("imported problem %d (%s) with %d cases", problem.ID, problem.Name, len(problem.Cases))
}
