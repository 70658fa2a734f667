package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mattermost/awsprov/model"
)

const serverAddressFlag = "server"

func init() {
	transactionCmd.PersistentFlags().String(serverAddressFlag, "http://localhost:8077", "The awsprov server to communicate with")

	transactionCreateCmd.Flags().String("account", "", "The 12 digit AWS account ID")
	transactionCreateCmd.Flags().String("role", "", "The IAM role name")
	transactionCreateCmd.Flags().String("action", string(model.ActionCreate), "Either create or delete")
	transactionCreateCmd.Flags().StringSlice("policy", nil, "Managed policy ARN to attach to the role; may be repeated")
	transactionCreateCmd.Flags().String("requester", "", "Who asked for the change")
	transactionCreateCmd.Flags().Bool("dry-run", false, "Simulate every step instead of executing it")
	transactionCreateCmd.Flags().Int("force-fail-step", 0, "Make the step with this ID fail, to exercise rollback")
	transactionCreateCmd.MarkFlagRequired("account")
	transactionCreateCmd.MarkFlagRequired("role")

	transactionGetCmd.Flags().String("transaction", "", "The ID of the transaction to fetch")
	transactionGetCmd.MarkFlagRequired("transaction")

	transactionListCmd.Flags().String("status", "", "Only list transactions with this status (Pending or Completed)")
	transactionListCmd.Flags().String("kind", "", "Only list transactions of this kind")
	transactionListCmd.Flags().Int("page", 0, "The page of transactions to fetch, starting at 0")
	transactionListCmd.Flags().Int("per-page", 100, "The number of transactions to fetch per page")

	kindsCmd.Flags().String(serverAddressFlag, "http://localhost:8077", "The awsprov server to communicate with")

	transactionCmd.AddCommand(transactionCreateCmd)
	transactionCmd.AddCommand(transactionGetCmd)
	transactionCmd.AddCommand(transactionListCmd)
}

var transactionCmd = &cobra.Command{
	Use:   "transaction",
	Short: "Create and inspect provisioning transactions on an awsprov server",
}

var transactionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a requisition and print the resulting Pending transaction",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString(serverAddressFlag)
		account, _ := command.Flags().GetString("account")
		role, _ := command.Flags().GetString("role")
		action, _ := command.Flags().GetString("action")
		policies, _ := command.Flags().GetStringSlice("policy")
		requester, _ := command.Flags().GetString("requester")
		dryRun, _ := command.Flags().GetBool("dry-run")
		forceFailStep, _ := command.Flags().GetInt("force-fail-step")

		requisition := &model.Requisition{
			AccountID:     account,
			RoleName:      role,
			Action:        model.Action(action),
			PolicyARNs:    policies,
			Requester:     requester,
			DryRun:        dryRun,
			ForceFailStep: forceFailStep,
		}
		if err := requisition.Validate(); err != nil {
			return errors.Wrap(err, "invalid requisition")
		}

		transaction, err := model.NewClient(serverAddress).CreateTransaction(requisition)
		if err != nil {
			return errors.Wrap(err, "failed to create transaction")
		}

		return printJSON(transaction)
	},
}

var transactionGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch a transaction and the state of its steps",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString(serverAddressFlag)
		transactionID, _ := command.Flags().GetString("transaction")

		transaction, err := model.NewClient(serverAddress).GetTransaction(transactionID)
		if err != nil {
			return errors.Wrap(err, "failed to get transaction")
		}
		if transaction == nil {
			return errors.Errorf("transaction %s not found", transactionID)
		}

		return printJSON(transaction)
	},
}

var transactionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString(serverAddressFlag)
		status, _ := command.Flags().GetString("status")
		kind, _ := command.Flags().GetString("kind")
		page, _ := command.Flags().GetInt("page")
		perPage, _ := command.Flags().GetInt("per-page")

		transactions, err := model.NewClient(serverAddress).GetTransactions(&model.TransactionFilter{
			Status:  model.TransactionStatus(status),
			Kind:    kind,
			Page:    page,
			PerPage: perPage,
		})
		if err != nil {
			return errors.Wrap(err, "failed to list transactions")
		}

		return printJSON(transactions)
	},
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the transaction kinds and their steps",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		serverAddress, _ := command.Flags().GetString(serverAddressFlag)
		kinds, err := model.NewClient(serverAddress).GetKinds()
		if err != nil {
			return errors.Wrap(err, "failed to list kinds")
		}

		return printJSON(kinds)
	},
}

func printJSON(data interface{}) error {
	encoded, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	_, err = fmt.Fprintln(os.Stdout, string(encoded))

	return err
}
