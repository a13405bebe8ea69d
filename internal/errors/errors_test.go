package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "E101",
			wantMsg: "Configuration file not found",
			wantCat: CategoryConfig,
		},
		{
			name:    "export error",
			code:    "E201",
			wantMsg: "Export build command failed",
			wantCat: CategoryExport,
		},
		{
			name:    "deploy error",
			code:    "E302",
			wantMsg: "Upload failed",
			wantCat: CategoryDeploy,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown flag %q", "--fast")
	if err.Message != `unknown flag "--fast"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
}

func TestErrorString(t *testing.T) {
	withCode := New("E101")
	if got := withCode.Error(); got != "E101: Configuration file not found" {
		t.Errorf("Error() = %q", got)
	}

	noCode := Newf(CategoryCLI, "bad usage")
	if got := noCode.Error(); got != "bad usage" {
		t.Errorf("Error() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := New("E202").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is failed to find the wrapped cause")
	}
	var we *WayfindError
	if !stderrors.As(err, &we) {
		t.Fatal("errors.As failed")
	}
	if we.Code != "E202" {
		t.Errorf("Code = %q, want E202", we.Code)
	}
}

func TestFromError(t *testing.T) {
	if got := FromError(nil, "E202"); got != nil {
		t.Errorf("FromError(nil) = %v, want nil", got)
	}

	already := New("E101")
	if got := FromError(already, "E202"); got != already {
		t.Error("FromError must not re-wrap a WayfindError")
	}

	plain := stderrors.New("boom")
	got := FromError(plain, "E202")
	if got.Code != "E202" || !stderrors.Is(got, plain) {
		t.Errorf("FromError = %+v", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E101").
		WithSuggestion("Run the command from your project root, or create wayfind.json").
		Wrap(stderrors.New("stat wayfind.json: no such file"))
	out := err.Format()

	for _, want := range []string{
		"ERROR E101: Configuration file not found",
		"No wayfind.json was found",
		"Cause: stat wayfind.json: no such file",
		"Hint: Run the command from your project root",
		"https://wayfind-go.dev/errors/E101",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("E302").Wrap(stderrors.New("access denied"))
	if got := err.FormatCompact(); got != "E302: Upload failed: access denied" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E103").WithDetail("port must be between 1 and 65535")
	out := err.FormatJSON()

	for _, want := range []string{
		`"code":"E103"`,
		`"category":"config"`,
		`"message":"Configuration is invalid"`,
		`"detail":"port must be between 1 and 65535"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatJSON() missing %q in %s", want, out)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven eight nine ten", 20)
	if len(lines) < 2 {
		t.Fatalf("wrapText produced %d lines, want several", len(lines))
	}
	for _, line := range lines {
		if len(line) > 20 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if got := wrapText("", 20); got != nil {
		t.Errorf("wrapText(\"\") = %v, want nil", got)
	}
}
