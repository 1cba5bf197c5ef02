package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	ErrNotSelectQuery   = errors.New("only SELECT queries are allowed")
	ErrSQLSyntaxError   = errors.New("SQL syntax error")
	ErrDangerousKeyword = errors.New("dangerous SQL keyword detected")
	ErrSQLInjection     = errors.New("potential SQL injection detected")
	ErrEmptyQuery       = errors.New("query cannot be empty")
	ErrQueryTooLong     = errors.New("query exceeds maximum length")
	ErrQueryTooComplex  = errors.New("query exceeds maximum complexity")
)

var dangerousKeywords = compileAll(`\b(` + strings.Join([]string{
	"DROP", "DELETE", "UPDATE", "INSERT", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	"COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE",
	"LOAD_FILE", "INTO OUTFILE", "INTO DUMPFILE",
	"EXEC", "EXECUTE", "CALL", "DO", "SLEEP", "BENCHMARK",
}, "|") + `)\b`)

var injectionPatterns = compileAll(
	";",
	`union.*select.*union`,
	`\bor\s+1\s*=\s*1\b`,
	`\band\s+1\s*=\s*1\b`,
	`\bor\s+true\b`,
	`\band\s+true\b`,
	`waitfor\s+delay`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// SQLValidator checks the raw SQL of segments before it is embedded in
// list queries. Only a single read-only SELECT is accepted.
type SQLValidator struct {
	maxQueryLength int
	maxComplexity  int
}

// NewSQLValidator creates a new SQLValidator instance. Non-positive limits
// fall back to defaults.
func NewSQLValidator(maxQueryLength, maxComplexity int) *SQLValidator {
	if maxQueryLength <= 0 {
		maxQueryLength = 10000
	}
	if maxComplexity <= 0 {
		maxComplexity = 30
	}
	return &SQLValidator{
		maxQueryLength: maxQueryLength,
		maxComplexity:  maxComplexity,
	}
}

// ValidateStatement validates that the SQL statement is safe and read-only
// and returns it normalized
func (sv *SQLValidator) ValidateStatement(sql string) (string, error) {
	if err := sv.basicValidation(sql); err != nil {
		return "", err
	}

	normalized := normalizeSQL(sql)
	stmt, err := parseSQL(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSQLSyntaxError, err)
	}
	if !isSelectStatement(stmt) {
		return "", ErrNotSelectQuery
	}

	upper := strings.ToUpper(normalized)
	for _, re := range dangerousKeywords {
		if re.MatchString(upper) {
			return "", ErrDangerousKeyword
		}
	}
	lower := strings.ToLower(normalized)
	for _, re := range injectionPatterns {
		if re.MatchString(lower) {
			return "", ErrSQLInjection
		}
	}
	if hasSuspiciousCharacters(normalized) {
		return "", ErrSQLInjection
	}

	if complexity := sv.complexity(stmt); complexity > sv.maxComplexity {
		return "", fmt.Errorf("%w: %d > %d", ErrQueryTooComplex, complexity, sv.maxComplexity)
	}
	return normalized, nil
}

// TableName extracts the table read by a SELECT statement
func (sv *SQLValidator) TableName(sql string) (string, error) {
	stmt, err := parseSQL(normalizeSQL(sql))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSQLSyntaxError, err)
	}

	selectStmt, ok := stmt.(*sqlparser.Select)
	if !ok {
		return "", ErrNotSelectQuery
	}
	if len(selectStmt.From) > 0 {
		if tableExpr, ok := selectStmt.From[0].(*sqlparser.AliasedTableExpr); ok {
			if tableName, ok := tableExpr.Expr.(sqlparser.TableName); ok {
				return tableName.Name.String(), nil
			}
		}
	}
	return "", errors.New("table name not found")
}

func (sv *SQLValidator) basicValidation(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return ErrEmptyQuery
	}
	if len(sql) > sv.maxQueryLength {
		return ErrQueryTooLong
	}
	// comments could hide a second statement
	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") || strings.Contains(sql, "*/") || strings.Contains(sql, "#") {
		return ErrSQLInjection
	}
	return nil
}

func (sv *SQLValidator) complexity(stmt sqlparser.Statement) int {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return selectComplexity(s)
	case *sqlparser.Union:
		total := 10
		if left, ok := s.Left.(*sqlparser.Select); ok {
			total += selectComplexity(left)
		}
		if right, ok := s.Right.(*sqlparser.Select); ok {
			total += selectComplexity(right)
		}
		return total
	default:
		return 0
	}
}

func selectComplexity(s *sqlparser.Select) int {
	complexity := 1
	if len(s.From) > 1 {
		complexity += len(s.From) * 5
	}
	if s.Where != nil {
		complexity += 3
	}
	if s.GroupBy != nil {
		complexity += 2
	}
	if s.Having != nil {
		complexity += 2
	}
	if s.OrderBy != nil {
		complexity += 2
	}
	if s.Limit != nil {
		complexity++
	}
	return complexity
}

func parseSQL(sql string) (sqlparser.Statement, error) {
	return sqlparser.NewTestParser().Parse(sql)
}

func isSelectStatement(stmt sqlparser.Statement) bool {
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return true
	default:
		return false
	}
}

func hasSuspiciousCharacters(sql string) bool {
	for _, r := range sql {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func normalizeSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
