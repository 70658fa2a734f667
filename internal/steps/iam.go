package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

const (
	defaultRolePath = "/awsprov/"

	propRoleName         = "roleName"
	propRoleArn          = "roleArn"
	propRolePath         = "rolePath"
	propRoleDescription  = "roleDescription"
	propAssumeRolePolicy = "assumeRolePolicy"
	propAttachedPolicies = "attachedPolicies"
	propDetachedPolicies = "detachedPolicies"
)

type policyDocument struct {
	Version   string
	Statement []policyStatement
}

type policyStatement struct {
	Effect    string
	Principal map[string]string
	Action    string
}

// trustPolicy allows principal to assume the role.
func trustPolicy(principal string) (string, error) {
	doc, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"AWS": principal},
			Action:    "sts:AssumeRole",
		}},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode trust policy")
	}
	return string(doc), nil
}

func rolePath(sc *saga.StepContext) string {
	if path, ok := sc.Config("path"); ok {
		return path
	}
	return defaultRolePath
}

func roleArn(accountID, path, name string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role%s%s", accountID, path, name)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func initIAM(ctx context.Context, base *saga.BaseStep, sc *saga.StepContext, client IAMAPI) error {
	if err := base.Init(ctx, sc); err != nil {
		return err
	}
	if client == nil {
		return errors.New("no IAM client configured")
	}
	return nil
}

// CreateRoleStep creates the IAM role named by the requisition. By
// default the role trusts the root of the target account; the
// "trustedPrincipal" config overrides that.
type CreateRoleStep struct {
	saga.BaseStep
	iam IAMAPI
}

func (s *CreateRoleStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initIAM(ctx, &s.BaseStep, sc, s.iam)
}

func (s *CreateRoleStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	sc := s.Context()
	req := sc.Requisition

	principal, ok := sc.Config("trustedPrincipal")
	if !ok {
		principal = fmt.Sprintf("arn:aws:iam::%s:root", req.AccountID)
	}
	doc, err := trustPolicy(principal)
	if err != nil {
		return s.Fail(err)
	}

	tags := []types.Tag{{Key: aws.String("awsprov:transaction"), Value: aws.String(sc.TransactionID)}}
	if req.Requester != "" {
		tags = append(tags, types.Tag{Key: aws.String("awsprov:requester"), Value: aws.String(req.Requester)})
	}

	out, err := s.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(req.RoleName),
		Path:                     aws.String(rolePath(sc)),
		AssumeRolePolicyDocument: aws.String(doc),
		Description:              aws.String(fmt.Sprintf("Provisioned by transaction %s", sc.TransactionID)),
		Tags:                     tags,
	})
	if isAlreadyExists(err) {
		return s.Fail(errors.Errorf("role %s already exists", req.RoleName))
	}
	if err != nil {
		return s.Fail(errors.Wrapf(err, "failed to create role %s", req.RoleName))
	}

	arn := roleArn(req.AccountID, rolePath(sc), req.RoleName)
	if out != nil && out.Role != nil && out.Role.Arn != nil {
		arn = *out.Role.Arn
	}
	s.Logger().WithField("arn", arn).Info("Created IAM role")

	return s.Succeed(
		model.NewResultProperty(propRoleName, req.RoleName),
		model.NewResultProperty(propRoleArn, arn),
	)
}

func (s *CreateRoleStep) Simulate(ctx context.Context) ([]model.ResultProperty, error) {
	req := s.Context().Requisition
	return s.Succeed(
		model.NewResultProperty(propRoleName, req.RoleName),
		model.NewResultProperty(propRoleArn, roleArn(req.AccountID, rolePath(s.Context()), req.RoleName)),
		model.NewResultProperty("simulated", "true"),
	)
}

func (s *CreateRoleStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	name, ok := s.Context().Own(propRoleName)
	if !ok {
		return nil
	}

	_, err := s.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil && !isNotFound(err) {
		return errors.Wrapf(err, "failed to delete role %s", name)
	}
	s.Logger().Infof("Deleted IAM role %s", name)

	return nil
}

// AttachPoliciesStep attaches the requested managed policies to the
// role. A partial attachment is undone before the step reports failure.
type AttachPoliciesStep struct {
	saga.BaseStep
	iam IAMAPI
}

func (s *AttachPoliciesStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initIAM(ctx, &s.BaseStep, sc, s.iam)
}

func (s *AttachPoliciesStep) policies() []string {
	policies := append([]string(nil), s.Context().Requisition.PolicyARNs...)
	if base, ok := s.Context().Config("basePolicies"); ok {
		policies = append(policies, splitList(base)...)
	}
	return policies
}

func (s *AttachPoliciesStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	name := s.Context().Requisition.RoleName

	var attached []string
	for _, arn := range s.policies() {
		_, err := s.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			if detachErr := detachPolicies(ctx, s.iam, name, attached); detachErr != nil {
				s.Logger().WithError(detachErr).Error("Failed to undo partial policy attachment")
			}
			return s.Fail(errors.Wrapf(err, "failed to attach policy %s", arn))
		}
		attached = append(attached, arn)
	}

	return s.Succeed(
		model.NewResultProperty(propRoleName, name),
		model.NewResultProperty(propAttachedPolicies, strings.Join(attached, ",")),
	)
}

func (s *AttachPoliciesStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	name, _ := s.Context().Own(propRoleName)
	attached, _ := s.Context().Own(propAttachedPolicies)

	return detachPolicies(ctx, s.iam, name, splitList(attached))
}

// DetachPoliciesStep detaches every managed policy from the role so
// that it can be deleted.
type DetachPoliciesStep struct {
	saga.BaseStep
	iam IAMAPI
}

func (s *DetachPoliciesStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initIAM(ctx, &s.BaseStep, sc, s.iam)
}

func (s *DetachPoliciesStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	name := s.Context().Requisition.RoleName

	var policies []string
	paginator := iam.NewListAttachedRolePoliciesPaginator(s.iam, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(name),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if isNotFound(err) {
			break
		}
		if err != nil {
			return s.Fail(errors.Wrapf(err, "failed to list policies attached to role %s", name))
		}
		for _, policy := range page.AttachedPolicies {
			policies = append(policies, aws.ToString(policy.PolicyArn))
		}
	}

	var detached []string
	for _, arn := range policies {
		_, err := s.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(name),
			PolicyArn: aws.String(arn),
		})
		if isNotFound(err) {
			continue
		}
		if err != nil {
			if attachErr := attachPolicies(ctx, s.iam, name, detached); attachErr != nil {
				s.Logger().WithError(attachErr).Error("Failed to undo partial policy detachment")
			}
			return s.Fail(errors.Wrapf(err, "failed to detach policy %s", arn))
		}
		detached = append(detached, arn)
	}

	return s.Succeed(
		model.NewResultProperty(propRoleName, name),
		model.NewResultProperty(propDetachedPolicies, strings.Join(detached, ",")),
	)
}

func (s *DetachPoliciesStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	name, _ := s.Context().Own(propRoleName)
	detached, _ := s.Context().Own(propDetachedPolicies)

	return attachPolicies(ctx, s.iam, name, splitList(detached))
}

// DeleteRoleStep deletes the role, keeping what is needed to recreate
// it on rollback.
type DeleteRoleStep struct {
	saga.BaseStep
	iam IAMAPI
}

func (s *DeleteRoleStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initIAM(ctx, &s.BaseStep, sc, s.iam)
}

func (s *DeleteRoleStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	name := s.Context().Requisition.RoleName

	out, err := s.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if isNotFound(err) {
		return s.Fail(errors.Errorf("role %s does not exist", name))
	}
	if err != nil {
		return s.Fail(errors.Wrapf(err, "failed to get role %s", name))
	}
	if out.Role == nil {
		return s.Fail(errors.Errorf("role %s was returned empty", name))
	}

	// IAM returns the trust policy URL encoded.
	doc, err := url.QueryUnescape(aws.ToString(out.Role.AssumeRolePolicyDocument))
	if err != nil {
		return s.Fail(errors.Wrap(err, "failed to decode trust policy"))
	}
	props := []model.ResultProperty{
		model.NewResultProperty(propRoleName, name),
		model.NewResultProperty(propRoleArn, aws.ToString(out.Role.Arn)),
		model.NewResultProperty(propRolePath, aws.ToString(out.Role.Path)),
		model.NewResultProperty(propRoleDescription, aws.ToString(out.Role.Description)),
		model.NewResultProperty(propAssumeRolePolicy, doc),
	}

	_, err = s.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return s.Fail(errors.Wrapf(err, "failed to delete role %s", name))
	}
	s.Logger().Infof("Deleted IAM role %s", name)

	return s.Succeed(props...)
}

func (s *DeleteRoleStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	sc := s.Context()
	doc, ok := sc.Own(propAssumeRolePolicy)
	if !ok {
		return nil
	}
	name, _ := sc.Own(propRoleName)
	path, _ := sc.Own(propRolePath)
	input := &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(doc),
	}
	if path != "" {
		input.Path = aws.String(path)
	}
	if description, ok := sc.Own(propRoleDescription); ok {
		input.Description = aws.String(description)
	}

	_, err := s.iam.CreateRole(ctx, input)
	if err != nil && !isAlreadyExists(err) {
		return errors.Wrapf(err, "failed to recreate role %s", name)
	}
	s.Logger().Infof("Recreated IAM role %s", name)

	return nil
}

func attachPolicies(ctx context.Context, client IAMAPI, role string, policies []string) error {
	var result *multierror.Error
	for _, arn := range policies {
		_, err := client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(role),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to attach policy %s", arn))
		}
	}
	return result.ErrorOrNil()
}

func detachPolicies(ctx context.Context, client IAMAPI, role string, policies []string) error {
	var result *multierror.Error
	for _, arn := range policies {
		_, err := client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(role),
			PolicyArn: aws.String(arn),
		})
		if err != nil && !isNotFound(err) {
			result = multierror.Append(result, errors.Wrapf(err, "failed to detach policy %s", arn))
		}
	}
	return result.ErrorOrNil()
}
