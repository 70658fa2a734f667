package steps

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/directory"
	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

const (
	propGroupID          = "groupId"
	propGroupName        = "groupName"
	propGroupDescription = "groupDescription"
)

func initDirectory(ctx context.Context, base *saga.BaseStep, sc *saga.StepContext, client DirectoryAPI) error {
	if err := base.Init(ctx, sc); err != nil {
		return err
	}
	if client == nil {
		return errors.New("no directory client configured")
	}
	return nil
}

// CreateGroupStep creates the directory group whose members may assume
// the role.
type CreateGroupStep struct {
	saga.BaseStep
	directory DirectoryAPI
}

func (s *CreateGroupStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initDirectory(ctx, &s.BaseStep, sc, s.directory)
}

func (s *CreateGroupStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	req := s.Context().Requisition
	name := req.GroupName()

	existing, err := s.directory.GetGroupByName(ctx, name)
	if err != nil {
		return s.Fail(err)
	}
	if existing != nil {
		return s.Fail(errors.Errorf("directory group %s already exists", name))
	}

	description := fmt.Sprintf("Members may assume role %s in account %s", req.RoleName, req.AccountID)
	if arn, ok := s.Context().Lookup(propRoleArn); ok {
		description = fmt.Sprintf("Members may assume %s", arn)
	}

	group, err := s.directory.CreateGroup(ctx, &directory.Group{Name: name, Description: description})
	if err != nil {
		return s.Fail(err)
	}
	s.Logger().WithField("group", group.ID).Infof("Created directory group %s", name)

	return s.Succeed(
		model.NewResultProperty(propGroupID, group.ID),
		model.NewResultProperty(propGroupName, name),
	)
}

func (s *CreateGroupStep) Simulate(ctx context.Context) ([]model.ResultProperty, error) {
	return s.Succeed(
		model.NewResultProperty(propGroupID, "simulated-"+model.NewID()),
		model.NewResultProperty(propGroupName, s.Context().Requisition.GroupName()),
		model.NewResultProperty("simulated", "true"),
	)
}

func (s *CreateGroupStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	id, ok := s.Context().Own(propGroupID)
	if !ok {
		return nil
	}
	return s.directory.DeleteGroup(ctx, id)
}

// DeleteGroupStep deletes the directory group of the role. A group
// that is already gone is not an error.
type DeleteGroupStep struct {
	saga.BaseStep
	directory DirectoryAPI
}

func (s *DeleteGroupStep) Init(ctx context.Context, sc *saga.StepContext) error {
	return initDirectory(ctx, &s.BaseStep, sc, s.directory)
}

func (s *DeleteGroupStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	name := s.Context().Requisition.GroupName()

	group, err := s.directory.GetGroupByName(ctx, name)
	if err != nil {
		return s.Fail(err)
	}
	if group == nil {
		s.Logger().Infof("Directory group %s does not exist; nothing to delete", name)
		return s.Succeed(model.NewResultProperty(propGroupName, name))
	}

	err = s.directory.DeleteGroup(ctx, group.ID)
	if err != nil {
		return s.Fail(err)
	}

	return s.Succeed(
		model.NewResultProperty(propGroupID, group.ID),
		model.NewResultProperty(propGroupName, name),
		model.NewResultProperty(propGroupDescription, group.Description),
	)
}

func (s *DeleteGroupStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	if _, deleted := s.Context().Own(propGroupID); !deleted {
		return nil
	}
	name, _ := s.Context().Own(propGroupName)
	description, _ := s.Context().Own(propGroupDescription)

	_, err := s.directory.CreateGroup(ctx, &directory.Group{Name: name, Description: description})
	return err
}
