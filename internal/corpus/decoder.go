package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cqb/internal/errors"
	"cqb/internal/logging"
)

// Decoder implements Attributes by shelling out to the corpus toolkit's
// decode utilities. Structural spans and frequency lists are decoded once
// per attribute and kept in memory; positional ranges are decoded per call.
type Decoder struct {
	Registry string
	Corpus   string
	logger   *logging.Logger

	// tool paths, overridable for tests
	DecodeBin    string
	SDecodeBin   string
	LexDecodeBin string
	DescribeBin  string

	mu     sync.Mutex
	size   int
	strucs map[string][]Struc
	freqs  map[string]map[string]int
}

// NewDecoder creates a decoder for one corpus
func NewDecoder(registry, corpusName string, logger *logging.Logger) *Decoder {
	return &Decoder{
		Registry:     registry,
		Corpus:       corpusName,
		logger:       logger,
		DecodeBin:    "cwb-decode",
		SDecodeBin:   "cwb-s-decode",
		LexDecodeBin: "cwb-lexdecode",
		DescribeBin:  "cwb-describe-corpus",
		strucs:       make(map[string][]Struc),
		freqs:        make(map[string]map[string]int),
	}
}

func (d *Decoder) run(bin string, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.New(errors.Engine,
			fmt.Sprintf("%s failed: %s", bin, strings.TrimSpace(stderr.String())), err)
	}
	return out.Bytes(), nil
}

// Size returns the corpus size in tokens
func (d *Decoder) Size() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.size > 0 {
		return d.size, nil
	}

	out, err := d.run(d.DescribeBin, "-r", d.Registry, d.Corpus)
	if err != nil {
		return 0, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "size") {
			continue
		}
		fields := strings.Fields(line)
		for i := len(fields) - 1; i >= 0; i-- {
			if n, err := strconv.Atoi(fields[i]); err == nil {
				d.size = n
				return n, nil
			}
		}
	}
	return 0, errors.Newf(errors.Parse, "corpus size not found in %s output", d.DescribeBin)
}

// Values returns positional attribute values for [start, end]
func (d *Decoder) Values(attr string, start, end int) ([]string, error) {
	if start > end {
		return nil, errors.Newf(errors.Internal, "invalid range [%d, %d]", start, end)
	}
	out, err := d.run(d.DecodeBin, "-C",
		"-r", d.Registry,
		"-s", strconv.Itoa(start),
		"-e", strconv.Itoa(end),
		d.Corpus, "-P", attr)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, end-start+1)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		values = append(values, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) != end-start+1 {
		return nil, errors.Newf(errors.Parse, "decoded %d values for range [%d, %d] of %s", len(values), start, end, attr)
	}
	return values, nil
}

// loadStrucs decodes all spans of a structural attribute, sorted by start
func (d *Decoder) loadStrucs(attr string) ([]Struc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if spans, ok := d.strucs[attr]; ok {
		return spans, nil
	}

	out, err := d.run(d.SDecodeBin, "-r", d.Registry, d.Corpus, "-S", attr)
	if err != nil {
		return nil, err
	}

	var spans []Struc
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			return nil, errors.Newf(errors.Parse, "malformed span line for %s: %q", attr, line)
		}
		start, err1 := strconv.Atoi(fields[0])
		end, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return nil, errors.Newf(errors.Parse, "malformed span bounds for %s: %q", attr, line)
		}
		s := Struc{ID: len(spans), Start: start, End: end}
		if len(fields) == 3 {
			s.Annotation = fields[2]
		}
		spans = append(spans, s)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	d.strucs[attr] = spans
	if d.logger != nil {
		d.logger.Debug("decoded structural attribute", map[string]interface{}{
			"attribute": attr,
			"spans":     len(spans),
		})
	}
	return spans, nil
}

// Enclosing finds the span of attr containing cpos via binary search.
// Structural attributes are non-overlapping, so at most one span qualifies.
func (d *Decoder) Enclosing(attr string, cpos int) (Struc, bool, error) {
	spans, err := d.loadStrucs(attr)
	if err != nil {
		return Struc{}, false, err
	}

	i := sort.Search(len(spans), func(i int) bool { return spans[i].End >= cpos })
	if i < len(spans) && spans[i].Start <= cpos && cpos <= spans[i].End {
		return spans[i], true, nil
	}
	return Struc{}, false, nil
}

// Frequency returns the corpus frequency of one attribute value. The full
// frequency lexicon for the attribute is decoded on first use.
func (d *Decoder) Frequency(attr, value string) (int, error) {
	d.mu.Lock()
	table, ok := d.freqs[attr]
	d.mu.Unlock()

	if !ok {
		out, err := d.run(d.LexDecodeBin, "-f", "-r", d.Registry, "-P", attr, d.Corpus)
		if err != nil {
			return 0, err
		}
		table = make(map[string]int)
		scanner := bufio.NewScanner(bytes.NewReader(out))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			// lexicon lines are "freq TAB value"
			fields := strings.SplitN(line, "\t", 2)
			if len(fields) != 2 {
				fields = strings.SplitN(line, " ", 2)
				if len(fields) != 2 {
					continue
				}
			}
			n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
			if err != nil {
				continue
			}
			table[strings.TrimSpace(fields[1])] += n
		}
		d.mu.Lock()
		d.freqs[attr] = table
		d.mu.Unlock()
	}

	return table[value], nil
}
