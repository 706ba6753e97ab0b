package tenancy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gosuda/trainhub/internal/domain"
)

type unsafeRule struct {
	name string
	re   *regexp.Regexp
}

// Rules run against the normalized statement (literals emptied, comments
// stripped, lowercase, identifier quotes removed, whitespace collapsed).
var unsafeRules = []unsafeRule{
	{"drop_database", regexp.MustCompile(`\bdrop\s+database\b`)},
	{"drop_schema", regexp.MustCompile(`\bdrop\s+schema\b`)},
	{"drop_table", regexp.MustCompile(`\bdrop\s+table\b`)},
	{"truncate", regexp.MustCompile(`\btruncate\b`)},
	{"delete_untagged_rows", regexp.MustCompile(`\bdelete\s+from\b[^;]*\btenant_id\s+is\s+null\b`)},
	{"delete_excluding_tenant", regexp.MustCompile(`\bdelete\s+from\b[^;]*\btenant_id\s*(?:!=|<>|not\s+in\b|is\s+distinct\s+from\b)`)},
	{"delete_negated_tenant_filter", regexp.MustCompile(`\bdelete\s+from\b[^;]*\bnot\s*\([^;]*\btenant_id\b`)},
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	dollarTag  = regexp.MustCompile(`^\$(?:[A-Za-z_][A-Za-z0-9_]*)?\$`)
)

// CheckUnsafeQuery rejects schema-destructive statements and deletes that
// exclude the tenant filter or target untagged rows. It is a second line of
// defense for raw SQL and does not replace parameterized queries.
func CheckUnsafeQuery(sql string) error {
	normalized := normalizeSQL(sql)
	for _, rule := range unsafeRules {
		if rule.re.MatchString(normalized) {
			return &UnsafeQueryError{Rule: rule.name}
		}
	}
	return nil
}

func normalizeSQL(sql string) string {
	s := whitespace.ReplaceAllString(stripLiteralsAndComments(sql), " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// stripLiteralsAndComments empties string literals (standard, E'' and
// dollar-quoted), replaces comments with a space and drops identifier
// quotes. Comment markers inside literals are data, not comments.
func stripLiteralsAndComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			escapes := i > 0 && (sql[i-1] == 'e' || sql[i-1] == 'E') && (i == 1 || !isIdentByte(sql[i-2]))
			b.WriteString("''")
			i = skipQuoted(sql, i+1, escapes)
		case c == '$' && (i == 0 || !isIdentByte(sql[i-1])) && dollarTag.MatchString(sql[i:]):
			tag := dollarTag.FindString(sql[i:])
			b.WriteString("''")
			end := strings.Index(sql[i+len(tag):], tag)
			if end < 0 {
				i = len(sql)
			} else {
				i += len(tag) + end + len(tag)
			}
		case c == '"':
			end := strings.IndexByte(sql[i+1:], '"')
			if end < 0 {
				b.WriteString(sql[i+1:])
				i = len(sql)
			} else {
				b.WriteString(sql[i+1 : i+1+end])
				i += end + 2
			}
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			b.WriteByte(' ')
			if end < 0 {
				i = len(sql)
			} else {
				i += end
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			b.WriteByte(' ')
			i = skipBlockComment(sql, i+2)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the index just past the closing quote of a literal
// whose body starts at i. '' is an escaped quote; with escapes set a
// backslash escapes the next byte.
func skipQuoted(sql string, i int, escapes bool) int {
	for i < len(sql) {
		switch {
		case escapes && sql[i] == '\\':
			i += 2
		case sql[i] == '\'':
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return len(sql)
}

// skipBlockComment handles nested /* */ comments.
func skipBlockComment(sql string, i int) int {
	depth := 1
	for i < len(sql) {
		switch {
		case strings.HasPrefix(sql[i:], "/*"):
			depth++
			i += 2
		case strings.HasPrefix(sql[i:], "*/"):
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(sql)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// UnsafeQueryError names the guard rule that matched. It unwraps to
// domain.ErrUnsafeQueryRejected.
type UnsafeQueryError struct {
	Rule string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrUnsafeQueryRejected, e.Rule)
}

func (e *UnsafeQueryError) Unwrap() error {
	return domain.ErrUnsafeQueryRejected
}
