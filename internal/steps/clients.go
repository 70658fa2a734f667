package steps

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mattermost/awsprov/internal/directory"
	"github.com/mattermost/awsprov/internal/ticketing"
)

//go:generate mockgen -package mock_steps -destination ../mocks/steps/clients.go github.com/mattermost/awsprov/internal/steps IAMAPI,S3API,Uploader,DirectoryAPI,TicketingAPI

// IAMAPI is the subset of the IAM client used by the role steps.
type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
}

// S3API is the subset of the S3 client used by the manifest step.
type S3API interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Uploader uploads objects to S3, as *manager.Uploader does.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// DirectoryAPI manages directory groups.
type DirectoryAPI interface {
	CreateGroup(ctx context.Context, group *directory.Group) (*directory.Group, error)
	GetGroupByName(ctx context.Context, name string) (*directory.Group, error)
	DeleteGroup(ctx context.Context, id string) error
}

// TicketingAPI records changes in the ticketing service.
type TicketingAPI interface {
	CreateTicket(ctx context.Context, ticket *ticketing.Ticket) (*ticketing.Ticket, error)
	TransitionTicket(ctx context.Context, id string, transition *ticketing.Transition) error
}

// Clients are the collaborators the built-in steps call. A nil client
// makes the steps that need it fail to initialize.
type Clients struct {
	IAM       IAMAPI
	S3        S3API
	Uploader  Uploader
	Directory DirectoryAPI
	Ticketing TicketingAPI

	// Bucket receives transaction manifests.
	Bucket string
}

// NewAWSClients builds the IAM and S3 clients from an AWS config.
func NewAWSClients(iamClient *iam.Client, s3Client *s3.Client) (IAMAPI, S3API, Uploader) {
	return iamClient, s3Client, manager.NewUploader(s3Client)
}
