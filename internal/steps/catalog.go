package steps

import (
	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

// Implementation keys of the built-in steps.
const (
	KeyCreateRole     = "iam-create-role"
	KeyAttachPolicies = "iam-attach-policies"
	KeyDetachPolicies = "iam-detach-policies"
	KeyDeleteRole     = "iam-delete-role"
	KeyCreateGroup    = "directory-create-group"
	KeyDeleteGroup    = "directory-delete-group"
	KeyWriteManifest  = "s3-write-manifest"
	KeyRecordTicket   = "ticket-record"
)

// Register binds every built-in implementation key to a factory using
// clients.
func Register(registry *saga.StepRegistry, clients *Clients) error {
	if clients == nil {
		clients = &Clients{}
	}
	factories := map[string]saga.StepFactory{
		KeyCreateRole:     func() saga.Step { return &CreateRoleStep{iam: clients.IAM} },
		KeyAttachPolicies: func() saga.Step { return &AttachPoliciesStep{iam: clients.IAM} },
		KeyDetachPolicies: func() saga.Step { return &DetachPoliciesStep{iam: clients.IAM} },
		KeyDeleteRole:     func() saga.Step { return &DeleteRoleStep{iam: clients.IAM} },
		KeyCreateGroup:    func() saga.Step { return &CreateGroupStep{directory: clients.Directory} },
		KeyDeleteGroup:    func() saga.Step { return &DeleteGroupStep{directory: clients.Directory} },
		KeyWriteManifest: func() saga.Step {
			return &ManifestStep{uploader: clients.Uploader, s3: clients.S3, bucket: clients.Bucket}
		},
		KeyRecordTicket: func() saga.Step { return &TicketStep{ticketing: clients.Ticketing} },
	}
	for _, key := range []string{
		KeyCreateRole, KeyAttachPolicies, KeyDetachPolicies, KeyDeleteRole,
		KeyCreateGroup, KeyDeleteGroup, KeyWriteManifest, KeyRecordTicket,
	} {
		if err := registry.RegisterFactory(key, factories[key]); err != nil {
			return errors.Wrapf(err, "failed to register step %s", key)
		}
	}

	return nil
}

// RegisterKinds adds kinds to the registry.
func RegisterKinds(registry *saga.StepRegistry, kinds []model.Kind) error {
	for _, kind := range kinds {
		if err := registry.RegisterKind(kind); err != nil {
			return err
		}
	}
	return nil
}

// DefaultKinds is the built-in step catalog.
func DefaultKinds() []model.Kind {
	return []model.Kind{
		{
			Name: model.KindCustomRole,
			Steps: []model.StepDefinition{
				{StepID: 1, Type: KeyCreateRole, ImplementationKey: KeyCreateRole, AnticipatedDuration: 2000,
					Description: "Create the IAM role in the target account"},
				{StepID: 2, Type: KeyAttachPolicies, ImplementationKey: KeyAttachPolicies, AnticipatedDuration: 1500,
					Description: "Attach the requested managed policies to the role"},
				{StepID: 3, Type: KeyCreateGroup, ImplementationKey: KeyCreateGroup, AnticipatedDuration: 1000,
					Description: "Create the directory group mapped to the role"},
				{StepID: 4, Type: KeyWriteManifest, ImplementationKey: KeyWriteManifest, AnticipatedDuration: 500,
					Description: "Write the provisioning manifest", Config: map[string]string{"prefix": "manifests"}},
				{StepID: 5, Type: KeyRecordTicket, ImplementationKey: KeyRecordTicket, AnticipatedDuration: 800,
					Description: "Record the change in the ticketing system", Config: map[string]string{"queue": "cloud-provisioning"}},
			},
		},
		{
			Name: model.KindCustomRoleDelete,
			Steps: []model.StepDefinition{
				{StepID: 1, Type: KeyRecordTicket, ImplementationKey: KeyRecordTicket, AnticipatedDuration: 800,
					Description: "Record the change in the ticketing system", Config: map[string]string{"queue": "cloud-provisioning"}},
				{StepID: 2, Type: KeyDeleteGroup, ImplementationKey: KeyDeleteGroup, AnticipatedDuration: 1000,
					Description: "Delete the directory group mapped to the role"},
				{StepID: 3, Type: KeyDetachPolicies, ImplementationKey: KeyDetachPolicies, AnticipatedDuration: 1500,
					Description: "Detach every managed policy from the role"},
				{StepID: 4, Type: KeyDeleteRole, ImplementationKey: KeyDeleteRole, AnticipatedDuration: 2000,
					Description: "Delete the IAM role"},
				{StepID: 5, Type: KeyWriteManifest, ImplementationKey: KeyWriteManifest, AnticipatedDuration: 500,
					Description: "Write the deprovisioning manifest", Config: map[string]string{"prefix": "manifests"}},
			},
		},
	}
}
