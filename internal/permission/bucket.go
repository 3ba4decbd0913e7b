package permission

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog/log"
)

// HeadBucketAPI is the subset of *s3.Client used by BucketGate.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// BucketGate guards an S3 bucket library. Access is whatever the current
// AWS credentials allow; the user is never asked.
type BucketGate struct {
	client   HeadBucketAPI
	bucket   string
	prompter Prompter
}

// NewBucketGate creates a gate for bucket. prompter may be nil.
func NewBucketGate(client HeadBucketAPI, bucket string, prompter Prompter) *BucketGate {
	return &BucketGate{client: client, bucket: bucket, prompter: prompter}
}

func (g *BucketGate) probe(ctx context.Context) (bool, error) {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return true, nil
	}
	if isAccessDenied(err) {
		log.Debug().Err(err).Str("bucket", g.bucket).Msg("Bucket access denied")
		return false, nil
	}
	return false, fmt.Errorf("HeadBucket bucket=%s: %w", g.bucket, err)
}

func (g *BucketGate) Query(ctx context.Context) (State, error) {
	ok, err := g.probe(ctx)
	if err != nil {
		return State{}, err
	}
	if ok {
		return State{Status: StatusGranted, CanAskAgain: true}, nil
	}
	return State{Status: StatusDenied, CanAskAgain: false}, nil
}

func (g *BucketGate) Request(ctx context.Context) (Status, error) {
	ok, err := g.probe(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return StatusGranted, nil
	}
	return StatusDeniedPermanently, nil
}

func (g *BucketGate) OpenSettings(ctx context.Context) error {
	if g.prompter == nil {
		return errors.New("no prompter configured")
	}
	return g.prompter.Inform(ctx, "Permission required", g.ManualInstructions())
}

func (g *BucketGate) ManualInstructions() string {
	return fmt.Sprintf("The current AWS credentials cannot access bucket %q.\n"+
		"Set AWS_PROFILE or run `aws configure`, and make sure the identity is allowed "+
		"s3:ListBucket, s3:GetObject and s3:DeleteObject on the bucket.", g.bucket)
}

func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "403":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusForbidden {
		return true
	}
	return false
}
