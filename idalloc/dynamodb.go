package idalloc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the subset of the DynamoDB API used by DynamoDB.
type DDBClient interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoDB keeps one item per namespace and increments it with an atomic
// UpdateItem ADD, which is safe across any number of processes.
//
// Table schema:
//   - Partition key: name (string), the namespace
//   - Attribute: seq (number), the last issued identifier
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name findmymeow-counters \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDB struct {
	client DDBClient
	table  string
	logger *slog.Logger
}

// NewDynamoDB creates an allocator on table.
func NewDynamoDB(client DDBClient, table string, optFns ...func(o *Options)) *DynamoDB {
	opts := applyOptions(optFns)

	return &DynamoDB{
		client: client,
		table:  table,
		logger: opts.Logger,
	}
}

// NextID implements Allocator.
func (d *DynamoDB) NextID(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, ErrInvalidNamespace
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: namespace},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		d.logger.Error("id allocation failed", "namespace", namespace, "backend", "dynamodb", "error", err)
		return 0, unavailable(namespace, err)
	}

	attr, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, unavailable(namespace, errors.New("missing seq attribute in UpdateItem response"))
	}

	id, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, unavailable(namespace, fmt.Errorf("parse seq %q: %w", attr.Value, err))
	}

	return id, nil
}
