package emotion

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"strings"
)

//go:embed assets/labels.txt
var embeddedLabels string

// DefaultLabels returns the FER-2013 class labels in model-output order.
func DefaultLabels() []string {
	labels, _ := ParseLabels(strings.NewReader(embeddedLabels))
	return labels
}

// LoadLabels reads a label file with one label per line.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return labels, nil
}

// ParseLabels reads one label per line. Surrounding whitespace is trimmed and
// blank lines are ignored.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	return labels, nil
}
