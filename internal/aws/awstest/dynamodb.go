// Package awstest provides in-memory fakes of the AWS clients for unit tests.
//
// The DynamoDB fake understands the small expression dialect the stores emit:
// conditions and filters joined with AND, built from =, <>, <, >, <=, >=,
// contains(), attribute_exists() and attribute_not_exists(), and SET-only
// update expressions. It is not a general DynamoDB emulator.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB is a map-backed fake of the DynamoDB client.
type DynamoDB struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]map[string]types.AttributeValue

	// Errs forces an operation ("GetItem", "PutItem", ...) to fail.
	Errs  map[string]error
	Calls map[string]int
}

// NewDynamoDB returns an empty fake. Tables are declared with CreateTable.
func NewDynamoDB() *DynamoDB {
	return &DynamoDB{
		keys:   map[string]string{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
		Errs:   map[string]error{},
		Calls:  map[string]int{},
	}
}

// CreateTable declares a table whose partition key is the string attribute pk.
func (d *DynamoDB) CreateTable(name, pk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[name] = pk
	if _, ok := d.tables[name]; !ok {
		d.tables[name] = map[string]map[string]types.AttributeValue{}
	}
}

// Item returns a copy of the stored item, or nil.
func (d *DynamoDB) Item(table, key string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.tables[table][key]
	if !ok {
		return nil
	}
	return clone(item)
}

// Len reports how many items table holds.
func (d *DynamoDB) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

// Seed stores item unconditionally.
func (d *DynamoDB) Seed(table string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk, err := d.keyOf(table, item)
	if err != nil {
		panic(err)
	}
	d.tables[table][pk] = clone(item)
}

func (d *DynamoDB) begin(op string) error {
	d.Calls[op]++
	return d.Errs[op]
}

func (d *DynamoDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("GetItem"); err != nil {
		return nil, err
	}
	pk, err := d.keyOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := d.tables[*params.TableName][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (d *DynamoDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("PutItem"); err != nil {
		return nil, err
	}
	if err := d.checkPut(*params.TableName, params.Item, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	d.applyPut(*params.TableName, params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *DynamoDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("UpdateItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	current, err := d.current(table, params.Key)
	if err != nil {
		return nil, err
	}
	ok, err := evaluate(deref(params.ConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("the conditional request failed")}
	}
	updated, err := d.applyUpdate(table, params.Key, deref(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew || params.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = clone(updated)
	}
	return out, nil
}

func (d *DynamoDB) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("DeleteItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	pk, err := d.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	current := d.tables[table][pk]
	ok, err := evaluate(deref(params.ConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("the conditional request failed")}
	}
	delete(d.tables[table], pk)
	out := &dyn.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && current != nil {
		out.Attributes = clone(current)
	}
	return out, nil
}

func (d *DynamoDB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("TransactWriteItems"); err != nil {
		return nil, err
	}
	for i, it := range params.TransactItems {
		var err error
		switch {
		case it.Put != nil:
			p := it.Put
			err = d.checkPut(*p.TableName, p.Item, p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		case it.Update != nil:
			u := it.Update
			var current map[string]types.AttributeValue
			if current, err = d.current(*u.TableName, u.Key); err == nil {
				var ok bool
				ok, err = evaluate(deref(u.ConditionExpression), u.ExpressionAttributeNames, u.ExpressionAttributeValues, current)
				if err == nil && !ok {
					err = errConditionFailed
				}
			}
		default:
			err = errors.New("awstest: unsupported transact item")
		}
		if errors.Is(err, errConditionFailed) || isConditionFailure(err) {
			reasons := make([]types.CancellationReason, len(params.TransactItems))
			for j := range reasons {
				reasons[j].Code = strPtr("None")
			}
			reasons[i].Code = strPtr("ConditionalCheckFailed")
			return nil, &types.TransactionCanceledException{
				Message:             strPtr("transaction cancelled, conditional check failed"),
				CancellationReasons: reasons,
			}
		}
		if err != nil {
			return nil, err
		}
	}
	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			d.applyPut(*it.Put.TableName, it.Put.Item)
		case it.Update != nil:
			u := it.Update
			if _, err := d.applyUpdate(*u.TableName, u.Key, deref(u.UpdateExpression), u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *DynamoDB) BatchGetItem(ctx context.Context, params *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("BatchGetItem"); err != nil {
		return nil, err
	}
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range params.RequestItems {
		if len(ka.Keys) > 100 {
			return nil, fmt.Errorf("awstest: too many keys in batch: %d", len(ka.Keys))
		}
		for _, key := range ka.Keys {
			pk, err := d.keyOf(table, key)
			if err != nil {
				return nil, err
			}
			if item, ok := d.tables[table][pk]; ok {
				out.Responses[table] = append(out.Responses[table], clone(item))
			}
		}
	}
	return out, nil
}

func (d *DynamoDB) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Query"); err != nil {
		return nil, err
	}
	cond := deref(params.KeyConditionExpression)
	if f := deref(params.FilterExpression); f != "" {
		cond += " AND " + f
	}
	items, err := d.match(*params.TableName, cond, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *DynamoDB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Scan"); err != nil {
		return nil, err
	}
	items, err := d.match(*params.TableName, deref(params.FilterExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *DynamoDB) match(table, cond string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	rows, ok := d.tables[table]
	if !ok {
		return nil, fmt.Errorf("awstest: unknown table %q", table)
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []map[string]types.AttributeValue
	for _, k := range keys {
		ok, err := evaluate(cond, names, values, rows[k])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, clone(rows[k]))
		}
	}
	return out, nil
}

var errConditionFailed = errors.New("condition failed")

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (d *DynamoDB) checkPut(table string, item map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue) error {
	pk, err := d.keyOf(table, item)
	if err != nil {
		return err
	}
	ok, err := evaluate(deref(cond), names, values, d.tables[table][pk])
	if err != nil {
		return err
	}
	if !ok {
		return &types.ConditionalCheckFailedException{Message: strPtr("the conditional request failed")}
	}
	return nil
}

func (d *DynamoDB) applyPut(table string, item map[string]types.AttributeValue) {
	pk, _ := d.keyOf(table, item)
	d.tables[table][pk] = clone(item)
}

func (d *DynamoDB) current(table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	pk, err := d.keyOf(table, key)
	if err != nil {
		return nil, err
	}
	return d.tables[table][pk], nil
}

func (d *DynamoDB) applyUpdate(table string, key map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	pk, err := d.keyOf(table, key)
	if err != nil {
		return nil, err
	}
	item, ok := d.tables[table][pk]
	if !ok {
		item = clone(key)
	} else {
		item = clone(item)
	}

	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return nil, fmt.Errorf("awstest: unsupported update expression %q", expr)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("awstest: bad assignment %q", assign)
		}
		name := resolveName(strings.TrimSpace(parts[0]), names)
		ref := strings.TrimSpace(parts[1])
		v, ok := values[ref]
		if !ok {
			return nil, fmt.Errorf("awstest: missing value %s", ref)
		}
		item[name] = v
	}
	d.tables[table][pk] = item
	return item, nil
}

func (d *DynamoDB) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	pkName, ok := d.keys[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %q", table)
	}
	v, ok := item[pkName].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: missing string key %q for table %q", pkName, table)
	}
	return v.Value, nil
}

// evaluate reports whether item satisfies cond. An empty cond always holds.
func evaluate(cond string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}
	for _, clause := range strings.Split(cond, " AND ") {
		ok, err := evalClause(strings.TrimSpace(clause), names, values, item)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

var operators = []string{" <> ", " >= ", " <= ", " = ", " < ", " > "}

func evalClause(clause string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists("):
		_, ok := item[resolveName(inner(clause), names)]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists("):
		_, ok := item[resolveName(inner(clause), names)]
		return ok, nil
	case strings.HasPrefix(clause, "contains("):
		args := strings.SplitN(inner(clause), ",", 2)
		if len(args) != 2 {
			return false, fmt.Errorf("awstest: bad contains %q", clause)
		}
		got, ok := item[resolveName(strings.TrimSpace(args[0]), names)].(*types.AttributeValueMemberS)
		want, wok := values[strings.TrimSpace(args[1])].(*types.AttributeValueMemberS)
		if !ok || !wok {
			return false, nil
		}
		return strings.Contains(got.Value, want.Value), nil
	}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		name := resolveName(strings.TrimSpace(clause[:idx]), names)
		ref := strings.TrimSpace(clause[idx+len(op):])
		want, ok := values[ref]
		if !ok {
			return false, fmt.Errorf("awstest: missing value %s", ref)
		}
		got, ok := item[name]
		if !ok {
			return false, nil
		}
		c, err := compare(got, want)
		if err != nil {
			return false, err
		}
		switch strings.TrimSpace(op) {
		case "=":
			return c == 0, nil
		case "<>":
			return c != 0, nil
		case ">=":
			return c >= 0, nil
		case "<=":
			return c <= 0, nil
		case "<":
			return c < 0, nil
		case ">":
			return c > 0, nil
		}
	}
	return false, fmt.Errorf("awstest: unsupported clause %q", clause)
}

func compare(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 1, nil
		}
		return strings.Compare(av.Value, bv.Value), nil
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 1, nil
		}
		x, err := strconv.ParseFloat(av.Value, 64)
		if err != nil {
			return 0, err
		}
		y, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("awstest: cannot compare %T", a)
}

func inner(clause string) string {
	start := strings.Index(clause, "(")
	end := strings.LastIndex(clause, ")")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(clause[start+1 : end])
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if real, ok := names[name]; ok {
			return real
		}
	}
	return name
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }
