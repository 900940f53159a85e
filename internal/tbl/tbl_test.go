// internal/tbl/tbl_test.go
package tbl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/biogo/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prokfmt/internal/annot"
	"prokfmt/internal/contigs"
)

var cm = contigs.NewMap(map[string]string{
	"contig_1": "G.0001",
	"contig_2": "G.0002",
	"contig_3": "G.0003",
})

func parse(t *testing.T, tbl string) []annot.GeneRecord {
	t.Helper()
	recs, err := Parse(context.Background(), strings.NewReader(tbl), "G.tbl", cm, "G", "genomes/G.fna")
	require.NoError(t, err)
	return recs
}

func ids(recs []annot.GeneRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestTbl2LstTwoGenes(t *testing.T) {
	dir := t.TempDir()
	tblPath := filepath.Join(dir, "G.tbl")
	lst := filepath.Join(dir, "LSTINFO", "G.lst")
	require.NoError(t, os.WriteFile(tblPath, []byte(
		">Feature contig_1\n"+
			"100\t500\tCDS\n"+
			"\t\t\tgene\tdnaA\n"+
			"\t\t\tproduct\tChromosomal replication initiator protein DnaA\n"+
			"\t\t\tEC_number\t3.6.4.12\n"+
			"900\t700\tCDS\n"+
			"\t\t\tproduct\thypothetical protein\n"), 0o644))

	require.NoError(t, Tbl2Lst(context.Background(), tblPath, lst, cm, "G", "genomes/G.fna", Options{}))
	got, err := os.ReadFile(lst)
	require.NoError(t, err)
	assert.Equal(t,
		"100\t500\tD\tCDS\tG.b0001_00001\tdnaA\tChromosomal replication initiator protein DnaA\t3.6.4.12\n"+
			"900\t700\tC\tCDS\tG.b0001_00002\tNA\thypothetical protein\tNA\n",
		string(got))

	recs, err := annot.LoadGeneList(lst)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, seq.Plus, recs[0].Strand())
	assert.Equal(t, seq.Minus, recs[1].Strand())
	assert.Equal(t, 1, recs[0].Num)
	assert.Equal(t, 2, recs[1].Num)
}

func TestBorderAndNumberingAcrossContigs(t *testing.T) {
	recs := parse(t, `>Feature contig_1
1	90	CDS
100	200	tRNA
300	250	CDS
>Feature contig_9
>Feature contig_2
10	20	CDS
`)
	assert.Equal(t, []string{
		"G.b0001_00001",
		"G.i0001_00002",
		"G.b0001_00003",
		"G.b0002_00004",
	}, ids(recs))
	assert.Equal(t, "G.0002", recs[3].Contig)
	assert.Equal(t, annot.KindTRNA, recs[1].Kind)
}

func TestContigNotFoundLeavesNoGeneList(t *testing.T) {
	dir := t.TempDir()
	tblPath := filepath.Join(dir, "G.tbl")
	lst := filepath.Join(dir, "G.lst")
	require.NoError(t, os.WriteFile(tblPath, []byte(">Feature contig_1\n1\t90\tCDS\n>Feature contig_x\n5\t50\tCDS\n"), 0o644))
	require.NoError(t, os.WriteFile(lst, []byte("stale\n"), 0o644))

	err := Tbl2Lst(context.Background(), tblPath, lst, cm, "G", "genomes/G.fna", Options{})
	require.ErrorIs(t, err, annot.ErrContigNotFound)
	assert.Equal(t, "tbl2lst: 'contig_x' found in "+tblPath+" does not exist in genomes/G.fna", err.Error())
	var ae *annot.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "contig_x", ae.Fields["contig"])

	_, statErr := os.Stat(lst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCrisprArrays(t *testing.T) {
	recs := parse(t, `>Feature contig_1
1	90	CDS
100	400	repeat_region
			rpt_family	CRISPR
500	600	repeat_region
700	800	CDS
>Feature contig_2
10	90	repeat_region
			rpt_family	CRISPR
`)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{
		"G.b0001_00001",
		"G.i0001_CRISPR1",
		"G.i0001_00002",
		"G.b0001_00003",
		"G.b0002_CRISPR1",
	}, ids(recs))
	assert.Equal(t, annot.KindCRISPR, recs[1].Kind)
	assert.Equal(t, 0, recs[1].Num)
	assert.Equal(t, annot.KindRepeat, recs[2].Kind)
	assert.Equal(t, 1, recs[4].CrisprIndex)
}

func TestGeneRowMerge(t *testing.T) {
	recs := parse(t, `>Feature contig_1
100	500	gene
			gene	dnaA
100	500	CDS
			product	DnaA
600	700	gene
			gene	orphan
800	900	CDS
			EC_number	1.1.1.1
			EC_number	2.2.2.2
`)
	require.Len(t, recs, 3)
	assert.Equal(t, annot.KindCDS, recs[0].Kind)
	assert.Equal(t, "dnaA", recs[0].GeneName)
	assert.Equal(t, "DnaA", recs[0].Product)
	assert.Equal(t, "gene", recs[1].TypeToken())
	assert.Equal(t, "orphan", recs[1].GeneName)
	assert.Equal(t, 2, recs[1].Num)
	assert.Equal(t, 3, recs[2].Num)
	assert.Equal(t, "1.1.1.1,2.2.2.2", recs[2].ECNumber)
}

func TestTrailingGeneRowKept(t *testing.T) {
	recs := parse(t, ">Feature contig_1\n1\t90\tCDS\n100\t200\tgene\n")
	require.Len(t, recs, 2)
	assert.Equal(t, 100, recs[1].Start)
	assert.True(t, recs[1].Border)
}

func TestPartialMarkersAndIntervals(t *testing.T) {
	recs := parse(t, ">contig_1\n<1\t>300\tCDS\n400\t450\tCDS\n460\t520\n")
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Start)
	assert.Equal(t, 300, recs[0].End)
	assert.Equal(t, 520, recs[1].End)
}

func TestSyntaxErrors(t *testing.T) {
	for name, in := range map[string]string{
		"qualifier first": "\t\t\tproduct\tx\n",
		"row first":       "1\t20\tCDS\n",
		"bad coordinate":  ">Feature contig_1\n0\t20\tCDS\n",
		"bad header":      ">Feature\n",
	} {
		_, err := Parse(context.Background(), strings.NewReader(in), "G.tbl", cm, "G", "g")
		require.Error(t, err, name)
		assert.False(t, annot.IsValidation(err), name)
		assert.Contains(t, err.Error(), "G.tbl:", name)
	}
}

func TestEmptyTable(t *testing.T) {
	assert.Empty(t, parse(t, ">Feature contig_1\n>Feature contig_2\n"))
}

func TestParseCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, strings.NewReader(">Feature contig_1\n1\t2\tCDS\n"), "G.tbl", cm, "G", "g")
	require.ErrorIs(t, err, context.Canceled)
}
