package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
)

const (
	batchGetLimit = 100
	// maxBatchRounds bounds how often unprocessed keys are re-requested.
	maxBatchRounds = 5
)

// Store encapsulates operations on the products and categories tables.
type Store struct {
	client          aws.DynamoDBAPI
	productsTable   string
	categoriesTable string
	nowFunc         func() time.Time
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, productsTable, categoriesTable string) *Store {
	return &Store{
		client:          client,
		productsTable:   productsTable,
		categoriesTable: categoriesTable,
		nowFunc:         time.Now,
	}
}

// Create assigns an id and inserts p. The category must exist.
func (s *Store) Create(ctx context.Context, p *Product) error {
	if p.CategoryID != "" {
		if _, err := s.GetCategory(ctx, p.CategoryID); err != nil {
			return err
		}
	}
	now := s.nowFunc().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	p.SearchText = searchText(p)
	Recompute(p)

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return errors.Wrap(err, "marshal product")
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.productsTable,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(product_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return errors.Wrapf(apperr.ErrConflict, "product %s", p.ID)
		}
		return errors.Wrap(err, "put product")
	}
	return nil
}

// Get fetches a product by id.
func (s *Store) Get(ctx context.Context, id string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.productsTable,
		Key:       productKey(id),
	})
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	if len(out.Item) == 0 {
		return nil, apperr.NotFound("product %s", id)
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal product")
	}
	return &p, nil
}

// ListByIDs resolves ids with batched reads. Unknown ids are simply absent
// from the result; duplicate ids are looked up once.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]Product, error) {
	seen := make(map[string]bool, len(ids))
	var keys []map[string]types.AttributeValue
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, productKey(id))
	}

	var products []Product
	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}
		items, err := s.batchGet(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			var p Product
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				return nil, errors.Wrap(err, "unmarshal product")
			}
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) batchGet(ctx context.Context, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	request := map[string]types.KeysAndAttributes{
		s.productsTable: {Keys: keys},
	}
	var items []map[string]types.AttributeValue
	for round := 0; len(request) > 0; round++ {
		if round == maxBatchRounds {
			return nil, errors.New("batch get products: unprocessed keys remain")
		}
		out, err := s.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, errors.Wrap(err, "batch get products")
		}
		items = append(items, out.Responses[s.productsTable]...)
		request = out.UnprocessedKeys
	}
	return items, nil
}

// Save replaces p if its stored version still equals expectedVersion, then
// bumps p.Version. A mismatch yields apperr.ErrVersionConflict.
func (s *Store) Save(ctx context.Context, p *Product, expectedVersion int) error {
	p.Version = expectedVersion + 1
	p.UpdatedAt = s.nowFunc().UTC()
	p.SearchText = searchText(p)

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		p.Version = expectedVersion
		return errors.Wrap(err, "marshal product")
	}
	expected, err := attributevalue.Marshal(expectedVersion)
	if err != nil {
		p.Version = expectedVersion
		return errors.Wrap(err, "marshal version")
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                 &s.productsTable,
		Item:                      item,
		ConditionExpression:       aws.String("#v = :expected"),
		ExpressionAttributeNames:  map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":expected": expected},
	})
	if err != nil {
		p.Version = expectedVersion
		if isConditionFailed(err) {
			return errors.Wrapf(apperr.ErrVersionConflict, "product %s", p.ID)
		}
		return errors.Wrap(err, "put product")
	}
	return nil
}

// Update applies u to the stored product under a version check.
func (s *Store) Update(ctx context.Context, id string, u ProductUpdate) (*Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.CategoryID != nil && *u.CategoryID != "" && *u.CategoryID != p.CategoryID {
		if _, err := s.GetCategory(ctx, *u.CategoryID); err != nil {
			return nil, err
		}
	}
	u.apply(p)
	if err := s.Save(ctx, p, p.Version); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a product.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.productsTable,
		Key:                 productKey(id),
		ConditionExpression: aws.String("attribute_exists(product_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return apperr.NotFound("product %s", id)
		}
		return errors.Wrap(err, "delete product")
	}
	return nil
}

// Recommendations returns up to limit other products from the same category.
func (s *Store) Recommendations(ctx context.Context, id string, limit int) ([]Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.scan(ctx, s.productsTable, "category_id = :cat AND product_id <> :self", map[string]types.AttributeValue{
		":cat":  &types.AttributeValueMemberS{Value: p.CategoryID},
		":self": &types.AttributeValueMemberS{Value: p.ID},
	}, nil)
	if err != nil {
		return nil, err
	}
	products, err := unmarshalProducts(items)
	if err != nil {
		return nil, err
	}
	sortProducts(products, SortCreatedAt, true)
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// CreateCategory inserts c, deriving the slug from the name when empty.
// Slugs are unique.
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	existing, err := s.scan(ctx, s.categoriesTable, "slug = :slug", map[string]types.AttributeValue{
		":slug": &types.AttributeValueMemberS{Value: c.Slug},
	}, nil)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return errors.Wrapf(apperr.ErrConflict, "category slug %q", c.Slug)
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.nowFunc().UTC()
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return errors.Wrap(err, "marshal category")
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.categoriesTable,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(category_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return errors.Wrapf(apperr.ErrConflict, "category %s", c.ID)
		}
		return errors.Wrap(err, "put category")
	}
	return nil
}

// GetCategory fetches a category by id.
func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.categoriesTable,
		Key:       map[string]types.AttributeValue{"category_id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get category")
	}
	if len(out.Item) == 0 {
		return nil, apperr.NotFound("category %s", id)
	}
	var c Category
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshal category")
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	items, err := s.scan(ctx, s.categoriesTable, "", nil, nil)
	if err != nil {
		return nil, err
	}
	cats := make([]Category, 0, len(items))
	for _, item := range items {
		var c Category
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, errors.Wrap(err, "unmarshal category")
		}
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

// scan reads every page of table matching filter.
func (s *Store) scan(ctx context.Context, table, filter string, values map[string]types.AttributeValue, names map[string]string) ([]map[string]types.AttributeValue, error) {
	input := &dyn.ScanInput{TableName: &table}
	if filter != "" {
		input.FilterExpression = &filter
		input.ExpressionAttributeValues = values
		if len(names) > 0 {
			input.ExpressionAttributeNames = names
		}
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", table)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func unmarshalProducts(items []map[string]types.AttributeValue) ([]Product, error) {
	products := make([]Product, 0, len(items))
	for _, item := range items {
		var p Product
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			return nil, errors.Wrap(err, "unmarshal product")
		}
		products = append(products, p)
	}
	return products, nil
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
