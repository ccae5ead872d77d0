package core

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxArchiveEntries   = 200
	maxArchiveTotalSize = 32 * 1024 * 1024
	maxArchiveFileSize  = 4 * 1024 * 1024
)

// ImportProblemArchive unpacks a problem package zip into destDir and
// returns the ProblemConfig entry it describes, ready to be appended to
// the server's JSON configuration. Expected layout, with all paths
// rooted under one top-level folder:
//
//	problem.yaml (required)
//	cases/<n>.in, cases/<n>.out (one pair per test case, 1-indexed)
func ImportProblemArchive(data []byte, destDir string) (ProblemConfig, error) {
	if len(data) == 0 {
		return ProblemConfig{}, errors.New("archive is empty")
	}
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04}) {
		return ProblemConfig{}, errors.New("only zip archives are supported")
	}

	files := map[string][]byte{}
	root, err := collectFromZip(data, files)
	if err != nil {
		return ProblemConfig{}, err
	}
	if root == "" {
		return ProblemConfig{}, errors.New("archive needs a single top-level folder")
	}

	configBytes, ok := files["problem.yaml"]
	if !ok {
		return ProblemConfig{}, errors.New("problem.yaml not found")
	}
	doc, err := parseProblemYAML(configBytes)
	if err != nil {
		return ProblemConfig{}, err
	}

	cases, err := collectCases(files, destDir, doc.ID)
	if err != nil {
		return ProblemConfig{}, err
	}
	if len(cases) == 0 {
		return ProblemConfig{}, errors.New("no test cases under cases/")
	}

	cfg := ProblemConfig{
		ID:    doc.ID,
		Name:  doc.Name,
		Type:  ProblemType(doc.Type),
		Cases: cases,
	}
	if doc.Packing != nil || doc.DynamicRankingRatio != nil || len(doc.SpecialJudge) > 0 {
		cfg.Misc = &MiscConfig{
			Packing:             doc.Packing,
			DynamicRankingRatio: doc.DynamicRankingRatio,
			SpecialJudge:        doc.SpecialJudge,
		}
	}
	return cfg, nil
}

type problemDoc struct {
	ID                  int64      `yaml:"id"`
	Name                string     `yaml:"name"`
	Type                string     `yaml:"type"`
	TimeLimit           int64      `yaml:"time_limit"`
	MemoryLimit         int64      `yaml:"memory_limit"`
	Score               float64    `yaml:"score_per_case"`
	Packing             [][]int    `yaml:"packing"`
	DynamicRankingRatio *float64   `yaml:"dynamic_ranking_ratio"`
	SpecialJudge        []string   `yaml:"special_judge"`
}

func parseProblemYAML(b []byte) (problemDoc, error) {
	var doc problemDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("malformed problem.yaml: %w", err)
	}
	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return doc, errors.New("name is required")
	}
	switch ProblemType(doc.Type) {
	case ProblemStandard, ProblemStrict, ProblemSPJ, ProblemDynamicRanking:
	default:
		return doc, fmt.Errorf("unknown problem type %q", doc.Type)
	}
	if doc.TimeLimit <= 0 {
		doc.TimeLimit = 1_000_000
	}
	if doc.Score <= 0 {
		doc.Score = 100
	}
	return doc, nil
}

// collectCases writes each cases/<n>.in / cases/<n>.out pair to destDir
// and returns the CaseConfig list, ordered by case number, referencing
// the written paths.
func collectCases(files map[string][]byte, destDir string, problemID int64) ([]CaseConfig, error) {
	bases := map[string]struct{ in, out bool }{}
	for name := range files {
		if !strings.HasPrefix(name, "cases/") {
			continue
		}
		base := strings.TrimSuffix(strings.TrimSuffix(path.Base(name), ".in"), ".out")
		entry := bases[base]
		if strings.HasSuffix(name, ".in") {
			entry.in = true
		}
		if strings.HasSuffix(name, ".out") {
			entry.out = true
		}
		bases[base] = entry
	}

	var names []string
	for name, got := range bases {
		if !got.in || !got.out {
			return nil, fmt.Errorf("case %q missing its .in or .out file", name)
		}
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		na, errA := strconv.Atoi(names[a])
		nb, errB := strconv.Atoi(names[b])
		switch {
		case errA == nil && errB == nil:
			return na < nb
		case errA == nil || errB == nil:
			return errA == nil
		}
		return names[a] < names[b]
	})

	outDir := filepath.Join(destDir, fmt.Sprintf("problem-%d", problemID))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var cases []CaseConfig
	for _, name := range names {
		inPath := filepath.Join(outDir, name+".in")
		outPath := filepath.Join(outDir, name+".out")
		if err := os.WriteFile(inPath, files["cases/"+name+".in"], 0o644); err != nil {
			return nil, err
		}
		if err := os.WriteFile(outPath, files["cases/"+name+".out"], 0o644); err != nil {
			return nil, err
		}
		cases = append(cases, CaseConfig{
			Score:      100,
			InputFile:  inPath,
			AnswerFile: outPath,
			TimeLimit:  1_000_000,
		})
	}
	return cases, nil
}

// collectFromZip reads zip entries into files map, requiring a single
// top-level folder and enforcing entry-count/size limits.
func collectFromZip(data []byte, files map[string][]byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("cannot open zip: %w", err)
	}
	var total int64
	hasRootLevel := false
	dirRoots := map[string]struct{}{}
	type entry struct {
		name    string
		content []byte
	}
	var entries []entry

	for i, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if i+1 > maxArchiveEntries {
			return "", errors.New("too many entries (limit 200)")
		}
		norm := normalizeArchivePath(f.Name)
		if strings.HasPrefix(norm, "/") || strings.Contains(norm, "../") {
			return "", errors.New("archive contains an unsafe path")
		}
		if f.UncompressedSize64 > maxArchiveFileSize {
			return "", fmt.Errorf("file %s too large (limit %d bytes)", f.Name, maxArchiveFileSize)
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("cannot open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveFileSize))
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", f.Name, err)
		}
		total += int64(len(content))
		if total > maxArchiveTotalSize {
			return "", errors.New("uncompressed size too large (limit 32MB)")
		}
		entries = append(entries, entry{name: norm, content: content})
		parts := strings.Split(norm, "/")
		if len(parts) == 1 {
			hasRootLevel = true
		} else if parts[0] != "" {
			dirRoots[parts[0]] = struct{}{}
		}
	}
	if hasRootLevel {
		return "", errors.New("archive needs a top-level folder")
	}
	if len(dirRoots) == 0 {
		return "", errors.New("no top-level folder found")
	}
	if len(dirRoots) > 1 {
		return "", errors.New("archive must have exactly one top-level folder")
	}
	var root string
	for k := range dirRoots {
		root = k
	}
	for _, e := range entries {
		name := strings.TrimPrefix(e.name, root+"/")
		if name == "" {
			continue
		}
		files[name] = e.content
	}
	return root, nil
}

func normalizeArchivePath(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "./")
	cleaned = strings.TrimPrefix(cleaned, "/")
	return cleaned
}
