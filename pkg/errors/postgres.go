package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// sqlStateClasses names the SQLSTATE codes the rescue schema is expected to
// raise. The counters on rescue_bags and the unique impact_credits key are
// the usual sources.
var sqlStateClasses = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23514": "check_violation",
	"23502": "not_null_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock_detected",
	"55P03": "lock_not_available",
	"57014": "query_canceled",
	"53300": "too_many_connections",
}

var transientStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"53300": true,
}

// Diagnosis summarises an error chain for logging.
type Diagnosis struct {
	Message    string
	Code       Code
	Chain      []string
	SQLState   string
	Class      string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Transient  bool
}

// Diagnose walks err and extracts the domain code and any Postgres detail,
// whether the driver surfaced a pgx or a lib/pq error.
func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}
	d := Diagnosis{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.SQLState = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		d.SQLState = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
	default:
		return d
	}

	d.Class = sqlStateClasses[d.SQLState]
	if d.Class == "" && strings.HasPrefix(d.SQLState, "08") {
		d.Class = "connection_exception"
	}
	d.Transient = transientStates[d.SQLState] || d.Class == "connection_exception"
	return d
}

// Fields flattens the chain and Postgres detail into log fields, omitting
// empty values. The message and code are left to the logger.
func (d Diagnosis) Fields() map[string]any {
	fields := map[string]any{}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.SQLState == "" {
		return fields
	}
	fields["pg_code"] = d.SQLState
	fields["pg_transient"] = d.Transient
	for key, value := range map[string]string{
		"pg_class":      d.Class,
		"pg_constraint": d.Constraint,
		"pg_table":      d.Table,
		"pg_column":     d.Column,
		"pg_detail":     d.Detail,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
