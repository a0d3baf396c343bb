package ingest

import (
	"strings"
	"testing"

	"github.com/campus-safety/kestrel/internal/domain"
)

func TestMapCategory(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"THEFT FROM MOTOR VEHICLE", domain.CategoryTheft},
		{"Attempted robbery", domain.CategoryTheft},
		{"BATTERY - SIMPLE ASSAULT", domain.CategoryAssault},
		{"SEXUAL HARASSMENT", domain.CategorySexual},
		{"VANDALISM - MISDEAMEANOR", domain.CategoryVandalism},
		{"DRUG/NARCOTIC VIOLATION", domain.CategoryDrugs},
		{"ARSON", domain.CategoryOther},
		{"", domain.CategoryOther},
	}
	for _, tc := range tests {
		if got := MapCategory(tc.desc); got != tc.want {
			t.Errorf("MapCategory(%q) = %q, want %q", tc.desc, got, tc.want)
		}
	}
}

func TestReadCSVRawExtract(t *testing.T) {
	csv := "DR_NO,DATE OCC,TIME OCC,CRM CD DESC,PREMIS DESC,VICT AGE,LAT,LON\n" +
		"1,01/04/2025 12:00:00 AM,2215,ROBBERY,SCHOOL INTERIOR,24,34.05,-118.25\n" +
		"2,01/06/2025 12:00:00 AM,0830,VANDALISM - FELONY,STREET,0,34.10,-118.30\n"

	ds, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows, want 2", ds.Len())
	}

	first := ds.Incidents[0]
	if first.Hour != 22 {
		t.Errorf("hour = %d, want 22 from military time 2215", first.Hour)
	}
	if !first.IsWeekend {
		t.Error("2025-01-04 is a Saturday, want weekend")
	}
	if first.Category != domain.CategoryTheft {
		t.Errorf("category = %q, want %q", first.Category, domain.CategoryTheft)
	}
	if first.Severity != 2 || !first.HighRisk {
		t.Errorf("severity/highRisk = %d/%v, want 2/true", first.Severity, first.HighRisk)
	}
	if !first.HasLocation || first.Latitude != 34.05 {
		t.Errorf("location = %v/%v", first.HasLocation, first.Latitude)
	}

	second := ds.Incidents[1]
	if second.IsWeekend {
		t.Error("2025-01-06 is a Monday, want weekday")
	}
	if second.Category != domain.CategoryVandalism || second.HighRisk {
		t.Errorf("category/highRisk = %q/%v, want vandalism at low risk", second.Category, second.HighRisk)
	}
	// Age 0 means unknown, imputed from the only valid age present.
	if second.VictimAge != 24 {
		t.Errorf("imputed age = %v, want 24", second.VictimAge)
	}

	for _, col := range []string{domain.ColHour, domain.ColIsWeekend, domain.ColCategory,
		domain.ColHighRisk, domain.ColVictimAge, domain.ColLatitude} {
		if !ds.Has(col) {
			t.Errorf("column %q should be present", col)
		}
	}
}

func TestReadCSVCampusProxyFallback(t *testing.T) {
	// Far fewer campus rows than the cutoff, so everything is kept and
	// nothing is flagged campus-specific.
	var sb strings.Builder
	sb.WriteString("TIME OCC,CRM CD DESC,PREMIS DESC\n")
	sb.WriteString("1200,ROBBERY,COLLEGE CAMPUS\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("1300,BURGLARY,STREET\n")
	}

	ds, err := ReadCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if ds.Len() != 21 {
		t.Errorf("got %d rows, want all 21 kept as proxy", ds.Len())
	}
	for _, inc := range ds.Incidents {
		if inc.CampusSpecific {
			t.Fatal("proxy fallback must not flag rows campus-specific")
		}
	}
}

func TestReadCSVPrecleanedColumns(t *testing.T) {
	csv := "hour,is_weekend,crime_category,victim_age,is_campus_specific\n" +
		"22,1,THEFT/ROBBERY,21,1\n" +
		"9,0,OTHER,30,0\n"

	ds, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	first := ds.Incidents[0]
	if first.Hour != 22 || !first.IsWeekend || !first.CampusSpecific {
		t.Errorf("first row = %+v", first)
	}
	if first.Category != domain.CategoryTheft || !first.HighRisk {
		t.Errorf("category = %q highRisk = %v", first.Category, first.HighRisk)
	}
	if ds.Incidents[1].HighRisk {
		t.Error("OTHER category must not be high-risk")
	}
	if ds.Has(domain.ColLatitude) {
		t.Error("latitude column should be absent")
	}
}

func TestReadCSVNoCategoryColumn(t *testing.T) {
	csv := "TIME OCC\n1200\n0100\n"

	ds, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	for _, inc := range ds.Incidents {
		if inc.Category != domain.CategoryUnknown {
			t.Errorf("category = %q, want %q", inc.Category, domain.CategoryUnknown)
		}
		if inc.Severity != 1 || inc.HighRisk {
			t.Errorf("unknown category severity = %d highRisk = %v", inc.Severity, inc.HighRisk)
		}
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a := Synthetic(500, 42)
	b := Synthetic(500, 42)

	if a.Len() != 500 || b.Len() != 500 {
		t.Fatalf("sizes = %d/%d, want 500", a.Len(), b.Len())
	}
	for i := range a.Incidents {
		if a.Incidents[i].Hour != b.Incidents[i].Hour ||
			a.Incidents[i].Category != b.Incidents[i].Category {
			t.Fatal("same seed produced different datasets")
		}
	}
}

func TestSyntheticHasLabelDiversity(t *testing.T) {
	ds := Synthetic(1000, 7)

	var high, low int
	for _, inc := range ds.Incidents {
		if inc.HighRisk {
			high++
		} else {
			low++
		}
	}
	if high == 0 || low == 0 {
		t.Fatalf("labels not diverse: %d high, %d low", high, low)
	}
	for _, col := range []string{domain.ColHour, domain.ColIsWeekend, domain.ColCategory,
		domain.ColHighRisk, domain.ColVictimAge, domain.ColCampus} {
		if !ds.Has(col) {
			t.Errorf("column %q should be present", col)
		}
	}
}
