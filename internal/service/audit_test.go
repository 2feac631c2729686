package service

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

func TestAudit_Clean(t *testing.T) {
	m := newMemStore()
	jp := m.addCountry(1, "Japan", "japan")
	jp.ISOA3 = strPtr("JPN")
	m.st.countries[1] = *jp
	m.addTag(2, "온천", "온천")
	m.addPost(10, 1, model.CategoryTravel, "Onsen", "onsen", true, 3)
	m.addHistory(model.KindPost, "old-onsen", 10)

	report, err := NewMaintenanceService(m, testLogger()).Audit(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !report.OK() {
		t.Errorf("Issues = %v", report.Issues)
	}
	var titles []string
	for _, s := range report.Sections {
		titles = append(titles, s.Title)
	}
	if !slices.Equal(titles, []string{"Country", "Tag", "Post", "SlugHistory"}) {
		t.Errorf("разделы = %v", titles)
	}
	if !slices.Contains(report.Sections[2].Lines, "- total: 1 (published: 1)") {
		t.Errorf("Post = %v", report.Sections[2].Lines)
	}
	if m.writes != 0 {
		t.Error("аудит записал данные")
	}
}

func TestAudit_Issues(t *testing.T) {
	m := newMemStore()
	jp := m.addCountry(1, "Japan", "japan")
	jp.ISOA3 = strPtr("-99")
	m.st.countries[1] = *jp
	m.addCountry(2, "Nippon", "japan")
	m.addCountry(3, "Korea", "")
	m.addTag(4, " ", "blank")
	m.addPost(10, 1, model.CategoryTravel, "Onsen", "onsen", true, 0)
	m.addHistory(model.KindTag, "ghost", 77)

	report, err := NewMaintenanceService(m, testLogger()).Audit(context.Background(), true, 1)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	want := []string{
		"Country.slug duplicate groups: 1",
		"Country.slug missing: 1",
		"Country.iso_a3 invalid: 1",
		"Tag.name missing: 1",
		"Published posts missing published_at: 1",
		"SlugHistory orphan rows: 1",
	}
	if !slices.Equal(report.Issues, want) {
		t.Errorf("Issues = %v\nожидалось %v", report.Issues, want)
	}

	country := strings.Join(report.Sections[0].Lines, "\n")
	for _, line := range []string{"  ! dup slug='japan' count=2", "- iso_a2 format: OK", "  ! 1 slug=japan iso_a3='-99'"} {
		if !strings.Contains(country, line) {
			t.Errorf("в разделе Country нет %q:\n%s", line, country)
		}
	}
}

func TestAudit_QuietHidesDetails(t *testing.T) {
	m := newMemStore()
	m.addCountry(1, "Japan", "japan")
	m.addCountry(2, "Nippon", "japan")

	report, err := NewMaintenanceService(m, testLogger()).Audit(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.OK() {
		t.Fatal("дубликат slug не найден")
	}
	for _, line := range report.Sections[0].Lines {
		if strings.HasPrefix(line, "  !") {
			t.Errorf("подробности без --verbose: %q", line)
		}
	}
}
