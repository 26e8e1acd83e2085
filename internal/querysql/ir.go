package querysql

// Expr is a scalar SQL expression. Sealed: only types in this package implement it,
// so the compiler's type switch is exhaustive.
type Expr interface {
	exprNode()
}

// Predicate is a boolean SQL condition. Sealed like Expr.
type Predicate interface {
	predicateNode()
}

// Column references table.name.
type Column struct {
	Table string
	Name  string
}

// Param is a value bound as a query argument.
type Param struct {
	Value any
}

// Int is an integer rendered inline. Used for trusted configuration values only.
type Int struct {
	Value int64
}

// YearOf extracts the calendar year of a date expression.
type YearOf struct {
	Expr Expr
}

// Minus is Left - Right.
type Minus struct {
	Left, Right Expr
}

// Count is count(*), or count(DISTINCT Of) when Of is set.
type Count struct {
	Of Expr
}

// RoundTo renders round(Expr / Nearest) * Nearest as an integer.
type RoundTo struct {
	Expr    Expr
	Nearest int64
}

func (Column) exprNode() {}
func (Param) exprNode() {}
func (Int) exprNode() {}
func (YearOf) exprNode() {}
func (Minus) exprNode() {}
func (Count) exprNode() {}
func (RoundTo) exprNode() {}

// Op is a comparison operator.
type Op string

const (
	Eq Op = "="
	Ne Op = "!="
	Lt Op = "<"
	Gt Op = ">"
	Le Op = "<="
	Ge Op = ">="
)

// Compare is Left Op Right.
type Compare struct {
	Left  Expr
	Op    Op
	Right Expr
}

// Between is Expr BETWEEN Low AND High.
type Between struct {
	Expr      Expr
	Low, High Expr
}

// In is Expr IN (subquery).
type In struct {
	Expr  Expr
	Query Select
}

// InList is Expr IN (v1, v2, ...).
type InList struct {
	Expr   Expr
	Values []Expr
}

// And holds when every predicate holds. An empty And is true.
type And struct {
	Predicates []Predicate
}

// Or holds when any predicate holds. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Compare) predicateNode() {}
func (Between) predicateNode() {}
func (In) predicateNode() {}
func (InList) predicateNode() {}
func (And) predicateNode() {}
func (Or) predicateNode() {}

// Join is an inner join.
type Join struct {
	Table string
	On    Predicate
}

// Select is a single SELECT statement. Where predicates are combined with AND.
type Select struct {
	Distinct bool
	Columns  []Expr
	From     string
	Joins    []Join
	Where    []Predicate
	GroupBy  []Expr
	Having   Predicate
	OrderBy  []Expr
}

// Col is shorthand for Column{Table: table, Name: name}.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// Equal builds Left = Param(v).
func Equal(left Expr, v any) Compare {
	return Compare{Left: left, Op: Eq, Right: Param{Value: v}}
}
