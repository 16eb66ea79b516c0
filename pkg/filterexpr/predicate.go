package filterexpr

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// predicate is one `field op literal` term of a conjunctive filter.
type predicate struct {
	Field string
	Op    Op
	Value any
}

// parsePredicates parses filter with CEL and flattens it into predicates.
// Only conjunctions of comparisons are accepted.
func parsePredicates(filter string, fields map[string]FilterField) ([]predicate, error) {
	env, err := buildEnv(fields)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return nil, invalidf("%v", issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("convert filter AST: %w", err)
	}

	var terms []*exprpb.Expr
	if err := flattenAnd(parsed.GetExpr(), &terms); err != nil {
		return nil, err
	}
	preds := make([]predicate, 0, len(terms))
	for _, term := range terms {
		pred, err := parsePredicate(term)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func flattenAnd(expr *exprpb.Expr, out *[]*exprpb.Expr) error {
	if expr == nil {
		return invalidf("empty expression")
	}
	call := expr.GetCallExpr()
	if call == nil {
		*out = append(*out, expr)
		return nil
	}
	switch call.Function {
	case "_&&_":
		for _, arg := range call.Args {
			if err := flattenAnd(arg, out); err != nil {
				return err
			}
		}
		return nil
	case "_||_", "_?_:_", "!_":
		return invalidf("operator %q is not supported; only && is allowed", call.Function)
	default:
		*out = append(*out, expr)
		return nil
	}
}

func parsePredicate(expr *exprpb.Expr) (predicate, error) {
	call := expr.GetCallExpr()
	if call == nil {
		return predicate{}, invalidf("expected a comparison")
	}

	var (
		op               Op
		fieldExpr, value *exprpb.Expr
	)
	switch call.Function {
	case "_==_", "_>=_", "_<=_", "@in":
		if call.Target != nil || len(call.Args) != 2 {
			return predicate{}, invalidf("operator %q expects two operands", call.Function)
		}
		op = map[string]Op{"_==_": OpEQ, "_>=_": OpGTE, "_<=_": OpLTE, "@in": OpIN}[call.Function]
		fieldExpr, value = call.Args[0], call.Args[1]
	case "startsWith":
		if call.Target == nil || len(call.Args) != 1 {
			return predicate{}, invalidf("startsWith must be called on a field with one argument")
		}
		op = OpSW
		fieldExpr, value = call.Target, call.Args[0]
	default:
		return predicate{}, invalidf("function %q is not supported", call.Function)
	}

	ident := fieldExpr.GetIdentExpr()
	if ident == nil {
		return predicate{}, invalidf("left-hand side of %q must be a field name", string(op))
	}
	lit, err := parseLiteral(value)
	if err != nil {
		return predicate{}, err
	}
	return predicate{Field: ident.GetName(), Op: op, Value: lit}, nil
}

// parseLiteral returns string, int64, float64, time.Time, or a []string /
// []int64 for list literals.
func parseLiteral(expr *exprpb.Expr) (any, error) {
	if c := expr.GetConstExpr(); c != nil {
		switch c.ConstantKind.(type) {
		case *exprpb.Constant_StringValue:
			return c.GetStringValue(), nil
		case *exprpb.Constant_Int64Value:
			return c.GetInt64Value(), nil
		case *exprpb.Constant_Uint64Value:
			return int64(c.GetUint64Value()), nil
		case *exprpb.Constant_DoubleValue:
			return c.GetDoubleValue(), nil
		default:
			return nil, invalidf("literal type %T is not supported", c.ConstantKind)
		}
	}

	if list := expr.GetListExpr(); list != nil {
		return parseListLiteral(list.GetElements())
	}

	if call := expr.GetCallExpr(); call != nil && call.Function == "timestamp" {
		if call.Target != nil || len(call.Args) != 1 || call.Args[0].GetConstExpr() == nil {
			return nil, invalidf("timestamp() expects a single string literal")
		}
		raw := call.Args[0].GetConstExpr().GetStringValue()
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, invalidf("timestamp literal %q is not RFC3339", raw)
		}
		return t, nil
	}

	return nil, invalidf("right-hand side must be a literal, list literal, or timestamp() call")
}

func parseListLiteral(elems []*exprpb.Expr) (any, error) {
	if len(elems) == 0 {
		return nil, invalidf("list literal must not be empty")
	}
	first, err := parseLiteral(elems[0])
	if err != nil {
		return nil, err
	}
	switch first.(type) {
	case string:
		return collectList[string](elems)
	case int64:
		return collectList[int64](elems)
	default:
		return nil, invalidf("list literals must hold strings or integers")
	}
}

func collectList[T string | int64](elems []*exprpb.Expr) ([]T, error) {
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		v, err := parseLiteral(elem)
		if err != nil {
			return nil, err
		}
		typed, ok := v.(T)
		if !ok {
			return nil, invalidf("list literal element %d has a different type", i)
		}
		out = append(out, typed)
	}
	return out, nil
}
