// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package store

import (
	"github.com/blang/semver"
)

type migration struct {
	fromVersion   semver.Version
	toVersion     semver.Version
	migrationFunc func(execer) error
}

// migrations defines the set of migrations necessary to advance the database to the latest
// expected version.
//
// Note that the canonical schema is currently obtained by applying all migrations to an empty
// database.
var migrations = []migration{
	{semver.MustParse("0.0.0"), semver.MustParse("0.1.0"),
		func(e execer) error {
			_, err := e.Exec(`
				CREATE TABLE System (
						Key    VARCHAR(64) PRIMARY KEY,
						Value  VARCHAR(1024) NULL
				);
		`)
			if err != nil {
				return err
			}

			_, err = e.Exec(`
				CREATE TABLE TransactionRecord (
						ID                   TEXT PRIMARY KEY NOT NULL,
						Kind                 TEXT NOT NULL,
						Requisition          BYTEA,
						Status               TEXT NOT NULL,
						Result               TEXT NOT NULL,
						AnticipatedDuration  BigInt,
						ActualDuration       BigInt,
						CreateAt             BigInt,
						StartAt              BigInt,
						CompleteAt           BigInt
				);

				CREATE TABLE StepRecord (
						TransactionID        TEXT NOT NULL,
						StepID               Integer NOT NULL,
						Type                 TEXT NOT NULL,
						Description          TEXT,
						ImplementationKey    TEXT,
						AnticipatedDuration  BigInt,
						Status               TEXT NOT NULL,
						Result               TEXT NOT NULL,
						ResultProperties     BYTEA,
						Error                TEXT,
						CompleteAt           BigInt,
						PRIMARY KEY (TransactionID, StepID)
				);

				ALTER TABLE StepRecord
						ADD CONSTRAINT fk_TransactionID
						FOREIGN KEY (TransactionID) REFERENCES TransactionRecord(ID)
				;
		`)
			return err
		},
	},
	{semver.MustParse("0.1.0"), semver.MustParse("0.2.0"),
		func(e execer) error {
			_, err := e.Exec(`
				ALTER TABLE TransactionRecord ADD COLUMN LockedBy TEXT NOT NULL DEFAULT '';
				ALTER TABLE TransactionRecord ADD COLUMN LockAcquiredAt BigInt NOT NULL DEFAULT 0;
				ALTER TABLE TransactionRecord ADD COLUMN Version BigInt NOT NULL DEFAULT 1;

				CREATE INDEX ix_TransactionRecord_Status_CreateAt ON TransactionRecord (Status, CreateAt);
		`)
			return err
		},
	},
	{semver.MustParse("0.2.0"), semver.MustParse("0.3.0"),
		func(e execer) error {
			_, err := e.Exec(`
				ALTER TABLE StepRecord ADD COLUMN RollbackError TEXT NOT NULL DEFAULT '';

				CREATE SEQUENCE TransactionSequence START 1;
		`)
			return err
		},
	},
}

// LatestVersion returns the version the schema reaches once every
// migration is applied.
func LatestVersion() semver.Version {
	return migrations[len(migrations)-1].toVersion
}
