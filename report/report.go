// Package report renders catalogs, studies and study results as terminal
// tables for the command line.
package report

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/giygas/labref-api/catalog"
	"github.com/giygas/labref-api/reference"
	"github.com/giygas/labref-api/source"
	"github.com/giygas/labref-api/study"
)

// Status markers
const (
	MarkNormal     = "✓"
	MarkBelow      = "↓"
	MarkAbove      = "↑"
	MarkUnresolved = "?"
	MarkNoValue    = "-"
)

func render(data pterm.TableData) (string, error) {
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// Marker returns the symbol of a classification
func Marker(status reference.Status) string {
	switch status {
	case reference.StatusNormal:
		return MarkNormal
	case reference.StatusBelow:
		return MarkBelow
	case reference.StatusAbove:
		return MarkAbove
	}
	return MarkUnresolved
}

// ReferenceTable lists every range of a catalog, one row per sex key and
// age band
func ReferenceTable(c *catalog.Catalog) (string, error) {
	data := pterm.TableData{{"Test", "Name", "Sex", "Age", "Range"}}
	for _, name := range c.ListTests() {
		t, err := c.GetTable(name)
		if err != nil {
			return "", err
		}
		for _, sex := range t.SexKeys() {
			src, _ := t.Source(sex)
			switch src.Kind {
			case reference.AgeBanded:
				for _, band := range src.Bands {
					data = append(data, []string{
						name, t.NameRU(), sex,
						reference.FormatNumber(band.AgeMin) + "-" + reference.FormatNumber(band.AgeMax),
						span(band.Min, band.Max, band.Unit),
					})
				}
			case reference.Simple:
				data = append(data, []string{name, t.NameRU(), sex, "any", span(src.Simple.Min, src.Simple.Max, src.Simple.Unit)})
			}
		}
	}
	return render(data)
}

func span(lo, hi float64, unit string) string {
	return reference.FormatNumber(lo) + "-" + reference.FormatNumber(hi) + " " + unit
}

// TestNames lists the tests of a catalog with their localized names
func TestNames(c *catalog.Catalog) (string, error) {
	data := pterm.TableData{{"Name", "Key", "Unit", "Code"}}
	for _, name := range c.ListTests() {
		t, err := c.GetTable(name)
		if err != nil {
			return "", err
		}
		data = append(data, []string{t.NameRU(), name, t.Unit(), t.Code()})
	}
	return render(data)
}

// TestTypes lists reference documents; test types and biomaterials alike
func TestTypes(infos []source.Info) (string, error) {
	data := pterm.TableData{{"Type", "Name", "Biomaterial", "Collection"}}
	for _, info := range infos {
		data = append(data, []string{info.Key, info.Name, info.BiomaterialType, info.CollectionMethod})
	}
	return render(data)
}

// Biomaterials lists documents that declare a biomaterial type
func Biomaterials(infos []source.Info) (string, error) {
	data := pterm.TableData{{"Key", "Name", "Collection", "Description"}}
	for _, info := range infos {
		data = append(data, []string{info.Key, info.Name, info.CollectionMethod, info.Description})
	}
	return render(data)
}

// Studies lists study definitions
func Studies(infos []study.Info) (string, error) {
	data := pterm.TableData{{"Key", "Name", "Biomaterials", "Preferred", "Tests"}}
	for _, info := range infos {
		required := 0
		for _, t := range info.Tests {
			if t.Required {
				required++
			}
		}
		data = append(data, []string{
			info.Key,
			info.Name,
			strings.Join(info.Biomaterials, ", "),
			info.PreferredBiomaterial,
			fmt.Sprintf("%d (%d required)", len(info.Tests), required),
		})
	}
	return render(data)
}

// Outcomes lists evaluated values of a catalog check
func Outcomes(outcomes []catalog.Outcome) (string, error) {
	data := pterm.TableData{{"", "Test", "Name", "Value", "Range", "Status"}}
	for _, o := range outcomes {
		row := []string{MarkUnresolved, o.Test, o.NameRU, reference.FormatNumber(o.Value), "", ""}
		if o.Err != nil {
			row[5] = o.Err.Error()
		} else {
			row[0] = Marker(o.Status)
			row[4] = o.Reference.String()
			row[5] = string(o.Status)
		}
		data = append(data, row)
	}
	return render(data)
}

// Result renders a study result: one row per submitted test in declared
// order, then the summary and missing required tests
func Result(res *study.Result) (string, error) {
	data := pterm.TableData{{"", "Test", "Name", "Value", "Range", "Status"}}
	for _, t := range res.Tests() {
		data = append(data, resultRow(t))
	}
	table, err := render(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	info := res.StudyInfo()
	fmt.Fprintf(&b, "%s (%s) · %s\n", info.Name, info.Key, res.BiomaterialInfo().Name)
	b.WriteString(table)

	s := res.Summary()
	fmt.Fprintf(&b, "\n%s normal: %d  %s below: %d  %s above: %d  total: %d\n",
		MarkNormal, s.Normal, MarkBelow, s.Below, MarkAbove, s.Above, s.Total)
	if missing := res.MissingRequired(); len(missing) > 0 {
		fmt.Fprintf(&b, "missing required: %s\n", strings.Join(missing, ", "))
	}
	return b.String(), nil
}

func resultRow(t *reference.Test) []string {
	row := []string{MarkNoValue, t.Name(), t.NameRU(), "", "", ""}
	if v, ok := t.Value(); ok {
		row[3] = reference.FormatNumber(v)
	}
	r, err := t.Reference()
	if err != nil {
		row[0] = MarkUnresolved
		row[5] = err.Error()
		return row
	}
	row[4] = r.String()
	status, err := t.Status()
	if err != nil || status == "" {
		return row
	}
	row[0] = Marker(status)
	row[5] = string(status)
	return row
}
