package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

const (
	defaultManifestPrefix = "manifests"

	propManifestBucket = "manifestBucket"
	propManifestKey    = "manifestKey"
)

// Manifest is the document written to S3 describing what a transaction
// did.
type Manifest struct {
	TransactionID string
	Kind          string
	Requisition   model.Requisition
	WrittenAt     int64
	Steps         []ManifestStepEntry
}

// ManifestStepEntry is the outcome of one earlier step.
type ManifestStepEntry struct {
	StepID     int
	Type       string
	Status     model.StepStatus
	Result     model.Result
	Properties map[string]string `json:",omitempty"`
}

// ManifestStep writes the manifest of the transaction to the
// configured bucket.
type ManifestStep struct {
	saga.BaseStep
	uploader Uploader
	s3       S3API
	bucket   string
}

func (s *ManifestStep) Init(ctx context.Context, sc *saga.StepContext) error {
	if err := s.BaseStep.Init(ctx, sc); err != nil {
		return err
	}
	if s.uploader == nil || s.s3 == nil {
		return errors.New("no S3 client configured")
	}
	if bucket, ok := sc.Config("bucket"); ok {
		s.bucket = bucket
	}
	if s.bucket == "" {
		return errors.New("no manifest bucket configured")
	}
	return nil
}

func (s *ManifestStep) key() string {
	sc := s.Context()
	prefix, ok := sc.Config("prefix")
	if !ok {
		prefix = defaultManifestPrefix
	}
	return path.Join(prefix, sc.Requisition.AccountID, sc.Requisition.RoleName, fmt.Sprintf("%s.json", sc.TransactionID))
}

func (s *ManifestStep) manifest() *Manifest {
	sc := s.Context()
	manifest := &Manifest{
		TransactionID: sc.TransactionID,
		Kind:          sc.Requisition.Kind(),
		Requisition:   sc.Requisition,
		WrittenAt:     model.GetMillis(),
	}
	for _, record := range sc.Prior() {
		entry := ManifestStepEntry{
			StepID: record.StepID,
			Type:   record.Type,
			Status: record.Status,
			Result: record.Result,
		}
		if len(record.ResultProperties) > 0 {
			entry.Properties = make(map[string]string, len(record.ResultProperties))
			for _, p := range record.ResultProperties {
				entry.Properties[p.Key] = p.Value
			}
		}
		manifest.Steps = append(manifest.Steps, entry)
	}
	return manifest
}

func (s *ManifestStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	body, err := json.MarshalIndent(s.manifest(), "", "  ")
	if err != nil {
		return s.Fail(errors.Wrap(err, "failed to encode manifest"))
	}
	key := s.key()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return s.Fail(errors.Wrapf(err, "failed to upload manifest to s3://%s/%s", s.bucket, key))
	}
	s.Logger().Infof("Wrote manifest to s3://%s/%s", s.bucket, key)

	return s.Succeed(
		model.NewResultProperty(propManifestBucket, s.bucket),
		model.NewResultProperty(propManifestKey, key),
	)
}

func (s *ManifestStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	key, ok := s.Context().Own(propManifestKey)
	if !ok {
		return nil
	}
	bucket, ok := s.Context().Own(propManifestBucket)
	if !ok {
		bucket = s.bucket
	}

	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "failed to delete manifest s3://%s/%s", bucket, key)
	}
	return nil
}
