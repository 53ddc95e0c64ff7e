// Package classifier talks to the remote flow classification service over gRPC.
// Messages are protobuf Structs, so the service needs no generated stubs on our side.
package classifier

import (
	"NetSentry/internal/engine/features"
	"NetSentry/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// PredictMethod is the full gRPC method name of the classifier's unary predict call.
const PredictMethod = "/netsentry.v1.ClassifierService/Predict"

// ErrBadResponse is returned when the service answers without a usable label.
var ErrBadResponse = errors.New("malformed classifier response")

// GRPCClassifier implements model.Classifier against a remote service.
type GRPCClassifier struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// New creates a client for addr. Extra dial options are appended to the defaults.
func New(addr string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClassifier, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client for %s: %w", addr, err)
	}
	return &GRPCClassifier{conn: conn, timeout: timeout}, nil
}

// Predict sends one feature vector, in FeatureNames order, and returns the predicted label.
func (c *GRPCClassifier) Predict(ctx context.Context, values []float64) (model.Prediction, error) {
	if len(values) != features.NumFeatures {
		return model.Prediction{}, fmt.Errorf("expected %d features, got %d", features.NumFeatures, len(values))
	}
	req, err := newRequest(values)
	if err != nil {
		return model.Prediction{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return model.Prediction{}, fmt.Errorf("classifier call failed: %w", err)
	}
	return parseResponse(resp)
}

// Close closes the connection.
func (c *GRPCClassifier) Close() error {
	return c.conn.Close()
}

func newRequest(values []float64) (*structpb.Struct, error) {
	names := make([]any, len(features.FeatureNames))
	for i, n := range features.FeatureNames {
		names[i] = n
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"feature_names": names,
		"features":      vals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier request: %w", err)
	}
	return req, nil
}

func parseResponse(resp *structpb.Struct) (model.Prediction, error) {
	fields := resp.GetFields()
	label := fields["label"].GetStringValue()
	if label == "" {
		return model.Prediction{}, fmt.Errorf("%w: missing label", ErrBadResponse)
	}
	return model.Prediction{
		Label:       label,
		Probability: fields["probability"].GetNumberValue(),
	}, nil
}
