package main

import (
	"encoding/pem"

	"github.com/spf13/cobra"

	"github.com/false2true/false2true/cert"
)

// newCACmd prints the root certificate, creating it when the store is empty,
// so it can be installed in the clients' trust stores.
func newCACmd() *cobra.Command {
	var certPath string

	cmd := &cobra.Command{
		Use:   "ca",
		Short: "Print the root CA certificate in PEM format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ca, err := cert.NewSelfSignCA(certPath)
			if err != nil {
				return err
			}
			return pem.Encode(cmd.OutOrStdout(), &pem.Block{Type: "CERTIFICATE", Bytes: ca.GetRootCA().Raw})
		},
	}

	cmd.Flags().StringVar(&certPath, "cert_path", "", "path of generated cert files (default ~/.false2true)")
	return cmd
}
