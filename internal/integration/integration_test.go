// internal/integration/integration_test.go
package integration

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prokfmt/internal/cli"
)

const (
	tblText = ">Feature contig_1\n" +
		"100\t500\tCDS\n\t\t\tgene\tdnaA\n\t\t\tproduct\tDnaA\n" +
		"900\t700\tCDS\n\t\t\tproduct\thypothetical protein\n" +
		">Feature contig_2\n" +
		"10\t90\trepeat_region\n\t\t\trpt_family\tCRISPR\n"
	gffText = "##gff-version 3\n" +
		"contig_1\tProdigal:2.6\tCDS\t100\t500\t.\t+\t0\tID=X_00001;locus_tag=X_00001\n" +
		"contig_1\tProdigal:2.6\tCDS\t700\t900\t.\t-\t0\tID=X_00002;locus_tag=X_00002\n" +
		"contig_2\tminced:0.2\trepeat_region\t10\t90\t.\t.\t.\tID=X_CRISPR1\n"
	ffnText   = ">X_00001 DnaA\nATGAAA\n>X_00002 hypothetical protein\nATGCCC\n>X_CRISPR1 CRISPR\nGGGG\n"
	fastaText = ">contig_1\n" + "ACGTACGTAC\n" + ">contig_2 plasmid\nACGTAC\n"
)

func write(t *testing.T, fn, data string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", fn, err)
	}
	if err := os.WriteFile(fn, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", fn, err)
	}
	return fn
}

// collection lays out an annotator result directory per genome. Genomes
// named in broken get a sequence file with an unparsable header.
func collection(t *testing.T, names []string, broken map[string]bool) (dir, manifest string) {
	t.Helper()
	dir = t.TempDir()
	var m strings.Builder
	m.WriteString("output_dir: out\nthreads: 2\ngenomes:\n")
	for _, n := range names {
		ffn := ffnText
		if broken[n] {
			ffn = ">X_00001\nATG\n>bad header\nATG\n"
		}
		write(t, filepath.Join(dir, "prokka", n, "X.tbl"), tblText)
		write(t, filepath.Join(dir, "prokka", n, "X.gff"), gffText)
		write(t, filepath.Join(dir, "prokka", n, "X.ffn"), ffn)
		write(t, filepath.Join(dir, "genomes", n+".fna"), fastaText)
		fmt.Fprintf(&m, "  - name: %s\n    path: genomes/%s.fna\n    annotation_dir: prokka/%s\n    prefix: X\n"+
			"    contigs:\n      contig_1: %s.0001\n      contig_2: %s.0002\n", n, n, n, n, n)
	}
	manifest = write(t, filepath.Join(dir, "manifest.yaml"), m.String())
	return dir, manifest
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errBuf bytes.Buffer
	code := cli.Run(args, &out, &errBuf)
	return code, out.String(), errBuf.String()
}

func read(t *testing.T, p string) string {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(b)
}

func TestBatchEndToEnd(t *testing.T) {
	dir, manifest := collection(t, []string{"GA", "GB"}, nil)

	code, stdout, stderr := run(t, "batch", "--manifest", manifest)
	if code != cli.ExitOK {
		t.Fatalf("exit %d, stderr=%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "genome\tstatus\t") {
		t.Fatalf("missing report header: %q", stdout)
	}

	lst := read(t, filepath.Join(dir, "out", "LSTINFO", "GA.lst"))
	wantLst := "100\t500\tD\tCDS\tGA.b0001_00001\tdnaA\tDnaA\tNA\n" +
		"900\t700\tC\tCDS\tGA.b0001_00002\tNA\thypothetical protein\tNA\n" +
		"10\t90\tD\tCRISPR\tGA.b0002_CRISPR1\tNA\tNA\tNA\n"
	if lst != wantLst {
		t.Fatalf("lst:\n%s\nwant:\n%s", lst, wantLst)
	}

	gff := read(t, filepath.Join(dir, "out", "gff3", "GB.gff"))
	for _, want := range []string{
		"##sequence-region GB.0001 1 10\n",
		"##sequence-region GB.0002 1 6\n",
		"GB.0002\tminced:0.2\trepeat_region\t10\t90\t.\t+\t.\tID=GB.b0002_CRISPR1;locus_tag=GB.b0002_CRISPR1\n",
	} {
		if !strings.Contains(gff, want) {
			t.Fatalf("gff lacks %q:\n%s", want, gff)
		}
	}

	gen := read(t, filepath.Join(dir, "out", "Genes", "GA.gen"))
	if !strings.Contains(gen, ">GA.b0002_CRISPR1 CRISPR\nGGGG\n") {
		t.Fatalf("gen:\n%s", gen)
	}
}

func TestBatchFailedGenomeDoesNotStopOthers(t *testing.T) {
	dir, manifest := collection(t, []string{"GA", "GB", "GC"}, map[string]bool{"GB": true})

	code, stdout, _ := run(t, "batch", "--manifest", manifest, "--report", "text", "--no-header")
	if code != cli.ExitFailed {
		t.Fatalf("want exit %d, got %d", cli.ExitFailed, code)
	}
	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 report lines, got %q", stdout)
	}
	if !strings.HasPrefix(lines[1], "GB\tfailed\tcreate_gen\tunknown_header_format\t") {
		t.Fatalf("bad report line %q", lines[1])
	}
	for _, sub := range []string{"LSTINFO/GB.lst", "gff3/GB.gff", "Genes/GB.gen"} {
		if _, err := os.Stat(filepath.Join(dir, "out", sub)); !os.IsNotExist(err) {
			t.Fatalf("%s should be removed", sub)
		}
	}
	for _, sub := range []string{"LSTINFO/GC.lst", "gff3/GC.gff", "Genes/GC.gen"} {
		if _, err := os.Stat(filepath.Join(dir, "out", sub)); err != nil {
			t.Fatalf("%s missing: %v", sub, err)
		}
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	names := []string{"GA", "GB", "GC", "GD"}
	dir, manifest := collection(t, names, nil)

	snapshot := func(threads int) map[string]string {
		out := filepath.Join(dir, fmt.Sprintf("out%d", threads))
		code, _, stderr := run(t, "batch", "-m", manifest, "-t", fmt.Sprint(threads), "--out-dir", out)
		if code != cli.ExitOK {
			t.Fatalf("exit %d err %s", code, stderr)
		}
		files := map[string]string{}
		for _, n := range names {
			for _, p := range []string{"LSTINFO/" + n + ".lst", "gff3/" + n + ".gff", "Genes/" + n + ".gen"} {
				files[p] = read(t, filepath.Join(out, p))
			}
		}
		return files
	}

	serial := snapshot(1)
	parallel := snapshot(4)
	for p, want := range serial {
		if parallel[p] != want {
			t.Fatalf("%s differs between serial and parallel runs", p)
		}
	}
}

func TestSingleSteps(t *testing.T) {
	dir := t.TempDir()
	tbl := write(t, filepath.Join(dir, "X.tbl"), tblText)
	gffIn := write(t, filepath.Join(dir, "X.gff"), gffText)
	ffn := write(t, filepath.Join(dir, "X.ffn"), ffnText)
	fna := write(t, filepath.Join(dir, "G.fna"), fastaText)
	lst := filepath.Join(dir, "G.lst")

	code, _, stderr := run(t, "tbl2lst", "--tbl", tbl, "-o", lst, "--name", "G", "--genome-path", fna,
		"--contig", "contig_1=G.0001", "--contig", "contig_2=G.0002")
	if code != cli.ExitOK {
		t.Fatalf("tbl2lst exit %d: %s", code, stderr)
	}
	code, _, stderr = run(t, "gff", "--gff", gffIn, "--lst", lst, "-o", filepath.Join(dir, "G.gff"), "--genome-path", fna,
		"--contig", "contig_1=G.0001", "--contig", "contig_2=G.0002")
	if code != cli.ExitOK {
		t.Fatalf("gff exit %d: %s", code, stderr)
	}
	code, _, stderr = run(t, "gen", "--ffn", ffn, "--lst", lst, "-o", filepath.Join(dir, "G.gen"))
	if code != cli.ExitOK {
		t.Fatalf("gen exit %d: %s", code, stderr)
	}
	if got := read(t, filepath.Join(dir, "G.gen")); !strings.HasPrefix(got, ">G.b0001_00001 DnaA\n") {
		t.Fatalf("gen:\n%s", got)
	}
}

func TestSingleStepValidationError(t *testing.T) {
	dir := t.TempDir()
	tbl := write(t, filepath.Join(dir, "X.tbl"), tblText)
	fna := write(t, filepath.Join(dir, "G.fna"), fastaText)
	lst := filepath.Join(dir, "G.lst")

	code, _, stderr := run(t, "tbl2lst", "--tbl", tbl, "-o", lst, "--name", "G", "--genome-path", fna,
		"--contig", "contig_1=G.0001")
	if code != cli.ExitFailed {
		t.Fatalf("want exit %d, got %d", cli.ExitFailed, code)
	}
	if !strings.Contains(stderr, "'contig_2' found in") {
		t.Fatalf("stderr lacks diagnostic: %s", stderr)
	}
	if _, err := os.Stat(lst); !os.IsNotExist(err) {
		t.Fatalf("gene list should not exist")
	}
}

func TestBatchStreamsJSONL(t *testing.T) {
	_, manifest := collection(t, []string{"GA", "GB", "GC"}, map[string]bool{"GB": true})

	code, stdout, _ := run(t, "batch", "-m", manifest, "-t", "2", "--report", "jsonl")
	if code != cli.ExitFailed {
		t.Fatalf("want exit %d, got %d", cli.ExitFailed, code)
	}
	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 report lines, got %q", stdout)
	}
	for _, want := range []string{
		`"genome":"GA","status":"ok"`,
		`"genome":"GB","status":"failed","step":"create_gen"`,
		`"genome":"GC","status":"ok"`,
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("report lacks %s:\n%s", want, stdout)
		}
	}
}

func TestTbl2LstSkipsGenomeWithContigMap(t *testing.T) {
	dir := t.TempDir()
	tbl := write(t, filepath.Join(dir, "X.tbl"), tblText)
	lst := filepath.Join(dir, "G.lst")

	// The genome FASTA is never read when the contig map is explicit.
	code, _, stderr := run(t, "tbl2lst", "--tbl", tbl, "-o", lst, "--name", "G",
		"--genome-path", filepath.Join(dir, "missing.fna"),
		"--contig", "contig_1=G.0001", "--contig", "contig_2=G.0002")
	if code != cli.ExitOK {
		t.Fatalf("tbl2lst exit %d: %s", code, stderr)
	}
	if got := read(t, lst); !strings.Contains(got, "G.b0001_00001") {
		t.Fatalf("lst:\n%s", got)
	}

	code, _, _ = run(t, "tbl2lst", "--tbl", tbl, "-o", lst, "--name", "G")
	if code != cli.ExitUsage {
		t.Fatalf("want exit %d without contig source, got %d", cli.ExitUsage, code)
	}
}

func TestGenomeCommandJSONL(t *testing.T) {
	dir, _ := collection(t, []string{"GA"}, nil)
	code, stdout, stderr := run(t, "genome", "--name", "GA", "--prefix", "X",
		"--genome-path", filepath.Join(dir, "genomes", "GA.fna"),
		"--annotation-dir", filepath.Join(dir, "prokka", "GA"),
		"--out-dir", filepath.Join(dir, "single"),
		"--report", "jsonl", "--log-format", "console", "-v")
	if code != cli.ExitOK {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"genome":"GA","status":"ok"`) {
		t.Fatalf("report: %s", stdout)
	}
	if !strings.Contains(stderr, "genome normalized") {
		t.Fatalf("expected debug/info logs on stderr, got %s", stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	cases := [][]string{
		{"batch"},
		{"batch", "--manifest", "nope.yaml"},
		{"batch", "--manifest", "m.yaml", "--report", "xml"},
		{"gen", "--bogus"},
		{"--log-format", "xml", "gen", "--ffn", "a", "--lst", "b", "-o", "c"},
		{"frobnicate"},
	}
	for _, args := range cases {
		if code, _, _ := run(t, args...); code != cli.ExitUsage {
			t.Errorf("%v: want exit %d, got %d", args, cli.ExitUsage, code)
		}
	}
}
