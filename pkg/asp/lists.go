// pkg/asp/lists.go
package asp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

// RootPath normalises a list entry to the rooted form "/usr/bin/foo"
func RootPath(p string) string {
	return path.Clean("/" + strings.TrimPrefix(strings.TrimSpace(p), "./"))
}

// ParseFileList parses newline separated paths. The result is rooted,
// sorted and de-duplicated, with blank lines dropped.
func ParseFileList(data []byte) []string {
	seen := make(map[string]struct{})
	var files []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p := RootPath(line)
		if p == "/" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	sort.Strings(files)
	return files
}

// FormatFileList is the inverse of ParseFileList
func FormatFileList(files []string) []byte {
	var buf bytes.Buffer
	for _, f := range ParseFileList([]byte(strings.Join(files, "\n"))) {
		buf.WriteString(f)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseChecksums parses "<hex> *<path>" or "<hex>  <path>" lines into a
// path -> lowercase hex map.
func ParseChecksums(data []byte) (map[string]string, error) {
	sums := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		digest, rest, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("checksum line %d: missing path", lineNo)
		}
		rest = strings.TrimLeft(rest, " ")
		rest = strings.TrimPrefix(rest, "*")
		if rest == "" {
			return nil, fmt.Errorf("checksum line %d: missing path", lineNo)
		}
		sums[RootPath(rest)] = strings.ToLower(digest)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return sums, nil
}

// FormatChecksums renders sums as sorted "<hex> *<path>" lines
func FormatChecksums(sums map[string]string) []byte {
	paths := make([]string, 0, len(sums))
	for p := range sums {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	for _, p := range paths {
		fmt.Fprintf(&buf, "%s *%s\n", sums[p], p)
	}
	return buf.Bytes()
}

// ParseDeps decodes a dependency map (elf path -> needed libs). Keys are
// rooted and lib lists sorted and de-duplicated.
func ParseDeps(data []byte) (map[string][]string, error) {
	raw := make(map[string][]string)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding dependency map: %w", err)
	}
	return NormalizeDeps(raw), nil
}

// FormatDeps encodes a dependency map as JSON
func FormatDeps(deps map[string][]string) ([]byte, error) {
	return json.MarshalIndent(NormalizeDeps(deps), "", "  ")
}

// NormalizeDeps returns a copy of deps with rooted keys and sorted libs
func NormalizeDeps(deps map[string][]string) map[string][]string {
	out := make(map[string][]string, len(deps))
	for elf, libs := range deps {
		key := RootPath(elf)
		set := make(map[string]struct{}, len(libs)+len(out[key]))
		for _, l := range out[key] {
			set[l] = struct{}{}
		}
		for _, l := range libs {
			if l = strings.TrimSpace(l); l != "" {
				set[l] = struct{}{}
			}
		}
		merged := make([]string, 0, len(set))
		for l := range set {
			merged = append(merged, l)
		}
		sort.Strings(merged)
		out[key] = merged
	}
	return out
}
