// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/rollup"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

var generated = time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC)

func sample() Digest {
	paper := types.Item{ID: "1", Source: types.SourcePubMed, Channel: "PubMed: sepsis", Title: "Vasopressin timing", URL: "https://pubmed/1",
		Text: "Abstract text.", Score: 3.5, DeepDive: true, PubMed: &types.PubMedMeta{Journal: "Crit Care"}}
	video := types.Item{ID: "v", Source: types.SourceYouTube, Channel: "EMCrit", Title: "Airway masterclass", DeepDive: true}
	post := types.Item{ID: "p", Source: types.SourceFoamed, Channel: "St Emlyn's", Title: "Ketamine induction", URL: "https://blog/p", TopPick: true}
	return Digest{
		ReportKey:   "cybermed",
		Mode:        types.ModeDaily,
		GeneratedAt: generated,
		Overview:    []types.Item{paper, post},
		DeepDives:   []types.Item{paper, video},
	}
}

func TestDelivered_UnionInOrder(t *testing.T) {
	got := sample().Delivered()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"1", "p", "v"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sample(), &buf)
	out := buf.String()
	assert.Contains(t, out, "Vasopressin timing")
	assert.Contains(t, out, "deep-dive")
	assert.Contains(t, out, "top-pick")
	assert.Contains(t, out, "3 items, 2 deep dives")

	buf.Reset()
	FormatTable(Digest{}, &buf)
	assert.Equal(t, NoContent+"\n", buf.String())
}

func TestFormatMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatMarkdown(sample(), &buf))
	md := buf.String()

	assert.True(t, strings.HasPrefix(md, "# cybermed daily digest, 2025-06-10\n"))
	assert.Contains(t, md, "### Literature")
	assert.Contains(t, md, "- ⭐ [Ketamine induction](https://blog/p) (St Emlyn's)")
	assert.Contains(t, md, "[Vasopressin timing](https://pubmed/1) · PubMed: sepsis · Crit Care")
	assert.Less(t, strings.Index(md, "## Executive Summary"), strings.Index(md, "## Deep dives"))

	bullets := rollup.ExtractSummaryBullets(md, 8, true)
	assert.Equal(t, []string{"Ketamine induction", "Vasopressin timing", "Airway masterclass"}, bullets)
}

func TestFormatMarkdown_Empty(t *testing.T) {
	var buf bytes.Buffer
	d := Digest{ReportKey: "r", Mode: types.ModeWeekly, GeneratedAt: generated}
	require.NoError(t, FormatMarkdown(d, &buf))
	assert.Contains(t, buf.String(), NoContent)
	assert.NotContains(t, buf.String(), "## Overview")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	mdPath, jsonPath, err := WriteFiles(dir, sample())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cybermed-daily-2025-06-10.md"), mdPath)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var back Digest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "cybermed", back.ReportKey)
	assert.Len(t, back.DeepDives, 2)
}
