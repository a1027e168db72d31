package merge

import (
	"bytes"

	"github.com/roach88/intrack/internal/event"
)

// FileResult is the outcome of a three-way file merge.
type FileResult struct {
	Result
	// Added is the number of events appended from theirs.
	Added int
	// Carried is the number of undecodable lines copied from theirs.
	Carried  int
	Warnings []*event.DecodeError
}

// MergeFiles merges two versions of a log file. The output starts with ours,
// byte for byte, followed by the events only theirs has in causal order and
// then any lines of theirs that could not be decoded, so nothing is lost.
// base is ignored: a log only grows, so the union already contains it.
func MergeFiles(base, ours, theirs []byte) ([]byte, FileResult) {
	_ = base

	// Reading from memory cannot fail; every bad line is a warning.
	oursEvents, oursWarns, _ := event.DecodeLog("ours", bytes.NewReader(ours))
	theirsEvents, theirsWarns, _ := event.DecodeLog("theirs", bytes.NewReader(theirs))

	res := FileResult{
		Result:   Merge(oursEvents, theirsEvents),
		Warnings: append(oursWarns, theirsWarns...),
	}

	have := make(map[string]bool, len(oursEvents))
	for _, e := range oursEvents {
		have[e.ID] = true
	}
	oursLines := make(map[string]bool)
	for _, line := range lines(ours) {
		oursLines[line] = true
	}

	var out bytes.Buffer
	out.Write(ours)
	if len(ours) > 0 && ours[len(ours)-1] != '\n' {
		out.WriteByte('\n')
	}
	for _, e := range res.Events {
		if have[e.ID] {
			continue
		}
		line, err := event.Encode(e)
		if err != nil {
			continue
		}
		out.Write(line)
		res.Added++
	}
	for _, w := range theirsWarns {
		if oursLines[w.Text] {
			continue
		}
		out.WriteString(w.Text)
		out.WriteByte('\n')
		oursLines[w.Text] = true
		res.Carried++
	}
	return out.Bytes(), res
}

// lines splits data the way DecodeLog does, whatever the line lengths.
func lines(data []byte) []string {
	var out []string
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		out = append(out, string(bytes.TrimRight(line, "\r")))
	}
	return out
}
