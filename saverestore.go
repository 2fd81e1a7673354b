package cascade

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Save-file format (§6): ASCII, big-endian-nibble hex (i.e. ordinary
// hex.EncodeToString, high nibble first). The file begins with the module
// count N, then N records each shaped
//
//	MODULE:
//	<text of canonical instantiation>
//	INPUT:
//	<bit-vector dump, 16 bytes per line>
//	STATE:
//	<bit-vector dump, 16 bytes per line>
//
// The bit-vector dump is the hex encoding of Input::serialize's compact
// binary representation: a 32-bit count, then (vid:u32, bits) pairs where
// bits is itself (width:u32, type:u8, words...) — self-describing, so a
// reader never needs a byte-length prefix around the whole dump.
//
// Cascade has no pretty-printer of its own (§1: textual/HTML
// pretty-printing is an external collaborator's job), so "the text of
// canonical instantiation" here is the module's type name and its dotted
// instance path — enough for Restart to find the matching live instance,
// which is all a reloading runtime actually needs from that line.

// SaveModuleTree writes every module in root's subtree to w per §6's
// save-file format — the concrete body of Runtime.Save / Scheduler.Save.
func SaveModuleTree(w io.Writer, root *Module) error {
	var modules []*Module
	root.Walk(func(m *Module) { modules = append(modules, m) })

	if _, err := fmt.Fprintln(w, len(modules)); err != nil {
		return err
	}
	for _, m := range modules {
		if err := writeModuleRecord(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writeModuleRecord(w io.Writer, m *Module) error {
	path := m.InstancePath
	if path == "" {
		path = RootModuleName
	}
	if _, err := fmt.Fprintf(w, "MODULE:\n%s\t%s\n", path, m.psrc.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "INPUT:"); err != nil {
		return err
	}
	if err := writeHexDump(w, encodeVarMap(m.Engine.GetInput().Values)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "STATE:"); err != nil {
		return err
	}
	return writeHexDump(w, encodeVarMap(m.Engine.GetState().Values))
}

func writeHexDump(w io.Writer, data []byte) error {
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		if _, err := fmt.Fprintln(w, hex.EncodeToString(data[i:end])); err != nil {
			return err
		}
	}
	return nil
}

// RestartModuleTree reads a save file produced by SaveModuleTree and
// injects each record's input/state into the matching live instance,
// found by dotted instance path under root — §4.5's "restart(path) reads
// the file and injects into every matching instance": records for
// instances no longer present in root's tree (or not yet present, in a
// runtime restarted before resync) are silently skipped.
func RestartModuleTree(r io.Reader, root *Module) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lp := &linePeeker{sc: sc}

	line, ok := lp.next()
	if !ok {
		return io.ErrUnexpectedEOF
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("cascade: save file: bad module count: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := restartModuleRecord(lp, root); err != nil {
			return err
		}
	}
	return nil
}

// linePeeker adds one line of lookahead/pushback on top of bufio.Scanner,
// needed because a STATE: hex dump's extent is only known once the next
// MODULE: marker (or EOF) is seen.
type linePeeker struct {
	sc      *bufio.Scanner
	pending string
	has     bool
}

func (lp *linePeeker) next() (string, bool) {
	if lp.has {
		lp.has = false
		return lp.pending, true
	}
	if lp.sc.Scan() {
		return lp.sc.Text(), true
	}
	return "", false
}

func (lp *linePeeker) pushback(s string) {
	lp.pending, lp.has = s, true
}

func restartModuleRecord(lp *linePeeker, root *Module) error {
	line, ok := lp.next()
	if !ok || strings.TrimSpace(line) != "MODULE:" {
		return fmt.Errorf("cascade: save file: expected MODULE:")
	}
	line, ok = lp.next()
	if !ok {
		return io.ErrUnexpectedEOF
	}
	path := strings.SplitN(line, "\t", 2)[0]
	if path == RootModuleName {
		path = ""
	}

	line, ok = lp.next()
	if !ok || strings.TrimSpace(line) != "INPUT:" {
		return fmt.Errorf("cascade: save file: expected INPUT:")
	}
	inputData, stop, err := scanHexUntil(lp, "STATE:")
	if err != nil {
		return err
	}
	if stop != "STATE:" {
		return fmt.Errorf("cascade: save file: expected STATE:, got %q", stop)
	}

	stateData, stop, err := scanHexUntil(lp, "MODULE:")
	if err != nil {
		return err
	}
	if stop == "MODULE:" {
		lp.pushback(stop)
	}

	m := root.Find(path)
	if m == nil {
		return nil
	}
	inputVals, err := decodeVarMap(inputData)
	if err != nil {
		return fmt.Errorf("cascade: save file: input for %q: %w", path, err)
	}
	stateVals, err := decodeVarMap(stateData)
	if err != nil {
		return fmt.Errorf("cascade: save file: state for %q: %w", path, err)
	}
	m.Engine.SetInput(EngineInput{Values: inputVals})
	m.Engine.SetState(EngineState{Values: stateVals})
	return nil
}

// scanHexUntil decodes hex-dump lines into a byte slice until it reads a
// line matching stopMarker or runs out of input (EOF is a legitimate
// terminator for the last record's STATE section). It returns the marker
// line actually seen, "" on EOF.
func scanHexUntil(lp *linePeeker, stopMarker string) (data []byte, stop string, err error) {
	for {
		line, ok := lp.next()
		if !ok {
			return data, "", nil
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == stopMarker {
			return data, trimmed, nil
		}
		decoded, derr := hex.DecodeString(trimmed)
		if derr != nil {
			return nil, "", fmt.Errorf("cascade: save file: bad hex line %q: %w", trimmed, derr)
		}
		data = append(data, decoded...)
	}
}

// encodeVarMap is Input::serialize / the analogous State serialization
// (§6): a 32-bit little-endian count, then (vid, bits) pairs in
// ascending-vid order for reproducible output.
func encodeVarMap(m map[VarID]Bits) []byte {
	var buf bytes.Buffer
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(m)))
	buf.Write(cnt[:])

	ids := make([]VarID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var vb [4]byte
		binary.LittleEndian.PutUint32(vb[:], uint32(id))
		buf.Write(vb[:])
		encodeBits(&buf, m[id])
	}
	return buf.Bytes()
}

func decodeVarMap(data []byte) (map[VarID]Bits, error) {
	r := bytes.NewReader(data)
	var cnt [4]byte
	if _, err := io.ReadFull(r, cnt[:]); err != nil {
		if err == io.EOF {
			return map[VarID]Bits{}, nil
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(cnt[:])
	out := make(map[VarID]Bits, n)
	for i := uint32(0); i < n; i++ {
		var vb [4]byte
		if _, err := io.ReadFull(r, vb[:]); err != nil {
			return nil, err
		}
		vid := VarID(binary.LittleEndian.Uint32(vb[:]))
		b, err := decodeBits(r)
		if err != nil {
			return nil, err
		}
		out[vid] = b
	}
	return out, nil
}

// encodeBits/decodeBits are the "bits is a nested serialization (length,
// type, words)" leaf of §6's Input::serialize format.
func encodeBits(buf *bytes.Buffer, b Bits) {
	var hdr [5]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.Width()))
	hdr[4] = byte(b.Type())
	buf.Write(hdr[:])

	if b.Type() == Real {
		var fb [8]byte
		binary.LittleEndian.PutUint64(fb[:], math.Float64bits(b.ToFloat64()))
		buf.Write(fb[:])
		return
	}
	for i := 0; i < b.NumWords(); i++ {
		var wb [4]byte
		binary.LittleEndian.PutUint32(wb[:], b.Word(i))
		buf.Write(wb[:])
	}
}

func decodeBits(r *bytes.Reader) (Bits, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Bits{}, err
	}
	width := int(binary.LittleEndian.Uint32(hdr[0:4]))
	typ := ValueType(hdr[4])

	if typ == Real {
		var fb [8]byte
		if _, err := io.ReadFull(r, fb[:]); err != nil {
			return Bits{}, err
		}
		return NewRealBits(math.Float64frombits(binary.LittleEndian.Uint64(fb[:]))), nil
	}

	n := (width + 31) / 32
	v := new(big.Int)
	for i := 0; i < n; i++ {
		var wb [4]byte
		if _, err := io.ReadFull(r, wb[:]); err != nil {
			return Bits{}, err
		}
		w := new(big.Int).SetUint64(uint64(binary.LittleEndian.Uint32(wb[:])))
		v.Or(v, w.Lsh(w, uint(32*i)))
	}
	out := Bits{typ: typ, width: max(1, width)}
	out.val.Set(v)
	out.mask()
	return out, nil
}
