package lead

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Lead
	}{
		{
			name: "trims and lower-cases",
			in:   Input{Name: "  Ann  ", Email: "ANN@X.COM ", Industry: "tech"},
			want: Lead{Name: "Ann", Email: "ann@x.com", Industry: "tech"},
		},
		{
			name: "keeps session correlator",
			in:   Input{Name: "Bo", Email: "bo@example.com", Industry: "retail", SessionID: " s-1 "},
			want: Lead{Name: "Bo", Email: "bo@example.com", Industry: "retail", SessionID: "s-1"},
		},
		{
			name: "truncates to limits",
			in: Input{
				Name:     strings.Repeat("n", 150),
				Email:    strings.Repeat("E", 300),
				Industry: strings.Repeat("i", 60),
			},
			want: Lead{
				Name:     strings.Repeat("n", MaxNameLength),
				Email:    strings.Repeat("e", MaxEmailLength),
				Industry: strings.Repeat("i", MaxIndustryLength),
			},
		},
		{
			name: "cut on whitespace is trimmed",
			in:   Input{Name: strings.Repeat("a", 99) + "   tail", Industry: strings.Repeat("b", 49) + " c"},
			want: Lead{Name: strings.Repeat("a", 99), Industry: strings.Repeat("b", 49)},
		},
		{
			name: "counts characters not bytes",
			in:   Input{Industry: strings.Repeat("é", 60)},
			want: Lead{Industry: strings.Repeat("é", MaxIndustryLength)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Sanitize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeRejectsMalformedText(t *testing.T) {
	_, err := Sanitize(Input{Name: "ok", Email: "a@b.c", Industry: "bad\xff\xfe"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "industry", verr.Field)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantField string
	}{
		{"valid", Input{Name: "Ann", Email: "ann@x.com", Industry: "tech"}, ""},
		{"missing name", Input{Name: "   ", Email: "ann@x.com", Industry: "tech"}, "Name"},
		{"bad email", Input{Name: "Ann", Email: "not-an-email", Industry: "tech"}, "Email"},
		{"missing industry", Input{Name: "Ann", Email: "ann@x.com"}, "Industry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@x.com", MaskEmail("ann@x.com"))
	assert.Equal(t, "***", MaskEmail("nope"))
	assert.Equal(t, "***", MaskEmail("@x.com"))
}

func TestPersistenceErrorDuplicate(t *testing.T) {
	err := error(&PersistenceError{Err: ErrDuplicateEmail})
	assert.True(t, errors.Is(err, ErrDuplicateEmail))

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Duplicate())
	assert.False(t, (&PersistenceError{Err: errors.New("timeout")}).Duplicate())
}

// FuzzSanitize checks the properties every sanitized lead must hold, whatever the input.
func FuzzSanitize(f *testing.F) {
	seeds := [][3]string{
		{"  Ann  ", "ANN@X.COM ", "tech"},
		{"", "", ""},
		{"\t\n", "  MIXED@Case.ORG ", "  "},
		{strings.Repeat("x ", 80), strings.Repeat("Ä", 300), strings.Repeat("é ", 40)},
		{"emoji 🎉🔥", "İSTANBUL@EXAMPLE.COM", "ﬁnance"},
	}
	for _, s := range seeds {
		f.Add(s[0], s[1], s[2])
	}

	f.Fuzz(func(t *testing.T, name, email, industry string) {
		in := Input{Name: name, Email: email, Industry: industry}
		once, err := Sanitize(in)
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}

		if n := utf8.RuneCountInString(once.Email); n > MaxEmailLength {
			t.Fatalf("email has %d characters", n)
		}
		if once.Email != strings.ToLower(once.Email) {
			t.Fatalf("email %q is not lower-case", once.Email)
		}
		if once.Email != strings.TrimSpace(once.Email) {
			t.Fatalf("email %q has surrounding whitespace", once.Email)
		}
		if utf8.RuneCountInString(once.Name) > MaxNameLength || utf8.RuneCountInString(once.Industry) > MaxIndustryLength {
			t.Fatalf("field over limit: %+v", once)
		}

		twice, err := Sanitize(Input{Name: once.Name, Email: once.Email, Industry: once.Industry})
		if err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("Sanitize not idempotent (-once +twice):\n%s", diff)
		}
	})
}
