package data

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `age,city,income,class
25,Paris,1000,yes
31,Berlin,,no
47,Paris,3200,yes
NA,Rome,2100,no
52,Berlin,4100,yes
`

func load(t *testing.T, src string) *Dataset {
	t.Helper()
	ds, err := LoadCSV(strings.NewReader(src))
	require.NoError(t, err)
	return ds
}

func TestLoadCSVDetectsKinds(t *testing.T) {
	ds := load(t, sampleCSV)

	assert.Equal(t, []string{"age", "city", "income", "class"}, ds.Names())
	assert.Equal(t, 5, ds.NumRows())

	age, _ := ds.Column("age")
	city, _ := ds.Column("city")
	income, _ := ds.Column("income")
	assert.Equal(t, Numeric, age.Kind)
	assert.Equal(t, Categorical, city.Kind)
	assert.Equal(t, Numeric, income.Kind)
	assert.Equal(t, 47.0, age.Values[2])
}

func TestLoadCSVNonFiniteCells(t *testing.T) {
	tests := []struct {
		cell string
		kind ColumnKind
	}{
		{"NAN", Categorical},
		{"+NaN", Categorical},
		{"inf", Numeric},
		{"-Infinity", Numeric},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			ds := load(t, "a,class\n1,x\n"+tt.cell+",y\n3,x\n")
			a, _ := ds.Column("a")
			assert.Equal(t, tt.kind, a.Kind)
		})
	}
}

func TestLoadCSVStripsBOM(t *testing.T) {
	ds := load(t, "\xEF\xBB\xBFa,b\n1,2\n")
	assert.Equal(t, []string{"a", "b"}, ds.Names())
}

func TestLoadCSVFileFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty file", ""},
		{"ragged rows", "a,b\n1,2,3\n"},
		{"duplicate header", "a,a\n1,2\n"},
		{"bare quote", "a,b\n1,\"2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.src))
			require.ErrorIs(t, err, ErrFileFormat)
		})
	}
}

func TestCSVReaderLoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ds, err := NewCSVReader(path).LoadData()
	require.NoError(t, err)
	assert.Equal(t, 4, ds.NumColumns())

	_, err = NewCSVReader(filepath.Join(t.TempDir(), "missing.csv")).LoadData()
	assert.Error(t, err)
}

func TestDropMissingIsIdempotent(t *testing.T) {
	ds := load(t, sampleCSV)

	DropMissing(ds)
	assert.Equal(t, 3, ds.NumRows())
	for _, col := range ds.Columns {
		for _, cell := range col.Cells {
			assert.False(t, IsMissing(cell))
		}
	}

	before := ds.Clone()
	DropMissing(ds)
	assert.Equal(t, before, ds)
}

func TestHandleMissingValuesStrategies(t *testing.T) {
	ds := load(t, sampleCSV)

	out, err := HandleMissingValues(ds, StrategyDrop)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NumRows())

	_, err = HandleMissingValues(load(t, sampleCSV), "mean")
	assert.ErrorIs(t, err, ErrUnsupportedStrategy)
}

func TestInferTargetColumn(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"age,income,class", "class"},
		{"x1,x2,x3", "x3"},
		{"Label,x1,x2", "Label"},
		{"a,Y,b", "Y"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			ds := load(t, tt.header+"\n1,2,3\n")
			assert.Equal(t, tt.want, InferTargetColumn(ds))
		})
	}
}

func TestWriteCSVAppendsColumn(t *testing.T) {
	ds := load(t, "a,b\n1,x\n2,y\n")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds, "Prediction", []string{"p", "q"}))
	assert.Equal(t, "a,b,Prediction\n1,x,p\n2,y,q\n", buf.String())

	err := WriteCSV(&buf, ds, "Prediction", []string{"p"})
	assert.Error(t, err)
}

func TestSelectAndWithout(t *testing.T) {
	ds := load(t, sampleCSV)

	sel, err := ds.Select("income", "age")
	require.NoError(t, err)
	assert.Equal(t, []string{"income", "age"}, sel.Names())

	_, err = ds.Select("nope")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	assert.Equal(t, []string{"age", "city", "income"}, ds.Without("class").Names())
}

func TestValidateTraining(t *testing.T) {
	dv := NewDataValidator()

	ds := load(t, "x,y\n1,a\n2,b\n")
	assert.NoError(t, dv.ValidateTraining(ds, "y"))
	assert.ErrorIs(t, dv.ValidateTraining(ds, "z"), ErrColumnNotFound)

	single := load(t, "x,y\n1,a\n2,a\n")
	assert.ErrorIs(t, dv.ValidateTraining(single, "y"), ErrInvalidDataset)

	oneRow := load(t, "x,y\n1,a\n")
	assert.ErrorIs(t, dv.ValidateTraining(oneRow, "y"), ErrInvalidDataset)

	infinite := load(t, "x,y\n1,a\ninf,b\n")
	assert.ErrorIs(t, dv.ValidateTraining(infinite, "y"), ErrInvalidDataset)

	infiniteTarget := load(t, "x,y\n1,-inf\n2,inf\n")
	assert.NoError(t, dv.ValidateTraining(infiniteTarget, "y"))
}

func TestSortLabels(t *testing.T) {
	assert.Equal(t, []string{"2", "10", "11"}, SortLabels([]string{"10", "2"}, []string{"11", "2"}))
	assert.Equal(t, []string{"10", "2", "a"}, SortLabels([]string{"a", "2", "10"}))
	assert.Empty(t, SortLabels())
}

func TestProfile(t *testing.T) {
	dv := NewDataValidator()
	p := dv.Profile(load(t, sampleCSV))

	assert.Equal(t, 5, p.Rows)
	assert.Equal(t, 4, p.Columns)
	assert.Equal(t, 2, p.MissingCells)
	assert.Equal(t, 3, p.CompleteRows)
	assert.Equal(t, "class", p.Target)
	require.Len(t, p.ColumnStats, 4)

	age := p.ColumnStats[0]
	assert.Equal(t, "numeric", age.Kind)
	assert.Equal(t, 1, age.Missing)
	assert.Equal(t, 4, age.Distinct)
	require.NotNil(t, age.Mean)
	assert.InDelta(t, 38.75, *age.Mean, 1e-9)
	assert.InDelta(t, 12.8160, *age.Std, 1e-4)
	assert.Equal(t, 25.0, *age.Min)
	assert.Equal(t, 52.0, *age.Max)

	city := p.ColumnStats[1]
	assert.Equal(t, "categorical", city.Kind)
	assert.Nil(t, city.Mean)
	assert.Equal(t, 3, city.Distinct)
	assert.Equal(t, "Berlin", city.Top)
	assert.Equal(t, 2, city.TopCount)

	stats := dv.GetDatasetStats(load(t, sampleCSV))
	assert.Equal(t, 2, stats["missing_cells"])
	assert.Equal(t, []string{"city", "class"}, stats["categorical_columns"])
}

func TestProfileSkipsNonFinite(t *testing.T) {
	p := NewDataValidator().Profile(load(t, "x,y\n1,a\ninf,b\n3,a\n"))
	x := p.ColumnStats[0]
	assert.Equal(t, "numeric", x.Kind)
	assert.InDelta(t, 2.0, *x.Mean, 1e-9)
	assert.Equal(t, 3.0, *x.Max)
}
