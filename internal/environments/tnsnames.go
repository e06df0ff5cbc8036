package environments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrTNSNamesNotFound is returned when no tnsnames.ora could be located.
var ErrTNSNamesNotFound = errors.New("tnsnames.ora not found")

var (
	hostPattern    = regexp.MustCompile(`(?i)\(\s*HOST\s*=\s*([^)\s]+)\s*\)`)
	portPattern    = regexp.MustCompile(`(?i)\(\s*PORT\s*=\s*([^)\s]+)\s*\)`)
	servicePattern = regexp.MustCompile(`(?i)\(\s*SERVICE_NAME\s*=\s*([^)\s]+)\s*\)`)
	aliasPattern   = regexp.MustCompile(`([A-Za-z0-9_.\-]+(?:\s*,\s*[A-Za-z0-9_.\-]+)*)\s*=\s*$`)
)

// ParseTNSNames extracts environments from tnsnames.ora content. It is a
// best-effort scanner: top-level "ALIAS = (...)" blocks are split on balanced
// parentheses and HOST, PORT and SERVICE_NAME are pulled out with regular
// expressions. Blocks without a host or service name are skipped.
func ParseTNSNames(r io.Reader) (map[string]Environment, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tnsnames: %w", err)
	}

	text := stripComments(string(raw))
	envs := make(map[string]Environment)

	depth := 0
	var header, body strings.Builder
	flush := func() {
		aliases := aliasPattern.FindStringSubmatch(header.String())
		block := body.String()
		header.Reset()
		body.Reset()
		if aliases == nil {
			return
		}
		host := firstGroup(hostPattern, block)
		service := firstGroup(servicePattern, block)
		if host == "" || service == "" {
			return
		}
		port := firstGroup(portPattern, block)
		if port == "" {
			port = "1521"
		}
		for _, alias := range strings.Split(aliases[1], ",") {
			name := strings.ToUpper(strings.TrimSpace(alias))
			if name == "" {
				continue
			}
			envs[name] = Environment{
				Name:        name,
				Host:        host,
				Port:        port,
				ServiceName: service,
				Descriptor:  compact(block),
			}
		}
	}

	for _, ch := range text {
		switch {
		case ch == '(':
			depth++
			body.WriteRune(ch)
		case ch == ')':
			if depth == 0 {
				continue
			}
			depth--
			body.WriteRune(ch)
			if depth == 0 {
				flush()
			}
		case depth > 0:
			body.WriteRune(ch)
		default:
			header.WriteRune(ch)
		}
	}

	return envs, nil
}

// LocateTNSNames resolves the tnsnames.ora path: an explicit path first, then
// $TNS_ADMIN, then $ORACLE_HOME/network/admin.
func LocateTNSNames(explicit string, getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if dir := getenv("TNS_ADMIN"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "tnsnames.ora"))
	}
	if home := getenv("ORACLE_HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "network", "admin", "tnsnames.ora"))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if explicit != "" {
		return "", fmt.Errorf("%w at %s", ErrTNSNamesNotFound, explicit)
	}
	return "", ErrTNSNamesNotFound
}

// LoadDirectory parses the tnsnames.ora file at path.
func LoadDirectory(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tnsnames: %w", err)
	}
	defer func() { _ = f.Close() }()

	envs, err := ParseTNSNames(f)
	if err != nil {
		return nil, err
	}
	return NewDirectory(path, envs), nil
}

func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "#"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
