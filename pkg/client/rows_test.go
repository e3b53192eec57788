package client

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func silentLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestExtractRowsDirectList(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": [{"submissionId": "1"}, {"submissionId": "2"}]}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["submissionId"] != "1" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
}

func TestExtractRowsSubmissionWrapper(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": {"submission": [{"submissionId": "1"}]}}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 1 || rows[0]["submissionId"] != "1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExtractRowsConfigPattern(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": {"editorList": {"editor": [{"name": "E1"}, {"name": "E2"}]}}}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["name"] != "E1" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
}

func TestExtractRowsConfigPatternDirectArray(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": {"attributeList": [{"attr": "a"}]}}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 1 || rows[0]["attr"] != "a" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExtractRowsLargestArrayFallback(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": {
		"meta": [{"k": "v"}],
		"records": [{"id": "1"}, {"id": "2"}, {"id": "3"}]
	}}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want the largest array", len(rows))
	}
}

func TestExtractRowsSingleRecordFallback(t *testing.T) {
	body := []byte(`{"Response": {"Status": "SUCCESS", "result": {"submissionId": "1", "title": "x"}}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want the object as a single record", len(rows))
	}
	if rows[0]["submissionId"] != "1" {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestExtractRowsNonSuccessStatus(t *testing.T) {
	body := []byte(`{"Response": {"Status": "FAILURE", "errorMessage": "boom", "result": [{"id": "1"}]}}`)

	if rows := ExtractRows(body, silentLogger()); len(rows) != 0 {
		t.Errorf("rows = %v, want none for a failed response", rows)
	}
}

func TestExtractRowsMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(`not json`),
		[]byte(`[]`),
		[]byte(`{"unrelated": true}`),
		[]byte(`{"Response": "string"}`),
	}
	for _, body := range cases {
		if rows := ExtractRows(body, silentLogger()); len(rows) != 0 {
			t.Errorf("ExtractRows(%q) = %v, want none", body, rows)
		}
	}
}

func TestExtractRowsLowercaseKeys(t *testing.T) {
	body := []byte(`{"response": {"status": "SUCCESS", "Result": [{"id": "1"}]}}`)

	rows := ExtractRows(body, silentLogger())
	if len(rows) != 1 {
		t.Errorf("rows = %v, lowercase wrappers must work", rows)
	}
}

func TestStampJournal(t *testing.T) {
	rows := ExtractRows([]byte(`{"Response": {"Status": "SUCCESS", "result": [{"id": "1"}]}}`), silentLogger())
	StampJournal(rows, "acme")
	if rows[0]["Journal"] != "acme" {
		t.Errorf("Journal not stamped: %v", rows[0])
	}
}
