package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/juniormartinxo/council/internal/fileutil"
	"github.com/juniormartinxo/council/internal/signature"
)

func newFlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage Ed25519 flow signatures and the trust store",
	}
	cmd.AddCommand(newFlowKeygenCmd(), newFlowSignCmd(), newFlowTrustCmd(), newFlowVerifyCmd())
	return cmd
}

func newFlowKeygenCmd() *cobra.Command {
	var keyID string
	var trust bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new Ed25519 key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyID == "" {
				return fmt.Errorf("flow keygen: --key-id is required")
			}

			pubPath := keyID + ".pub.pem"
			privPath := keyID + ".key.pem"
			if fileutil.Exists(pubPath) || fileutil.Exists(privPath) {
				return fmt.Errorf("flow keygen: %s or %s already exists, refusing to overwrite", pubPath, privPath)
			}

			pub, priv, err := signature.GenerateKeyPair()
			if err != nil {
				return err
			}

			if err := fileutil.WriteFile(pubPath, pub); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}
			// The private key gets owner-only permissions, which
			// fileutil.WriteFile's fixed 0644 mode does not provide.
			if err := os.WriteFile(privPath, priv, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			fmt.Printf("wrote %s and %s\n", pubPath, privPath)

			if trust {
				b, err := newBootstrap()
				if err != nil {
					return err
				}
				if err := b.trustStore.Trust(keyID, pub); err != nil {
					return fmt.Errorf("trust new key: %w", err)
				}
				fmt.Printf("trusted %s in %s\n", keyID, b.trustStore.Dir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyID, "key-id", "", "identifier for the generated key pair")
	cmd.Flags().BoolVar(&trust, "trust", false, "install the public key into the trust store")
	return cmd
}

func newFlowSignCmd() *cobra.Command {
	var privateKeyPath, keyID string
	cmd := &cobra.Command{
		Use:   "sign FILE",
		Short: "Sign a flow file, writing a <file>.sig sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if privateKeyPath == "" || keyID == "" {
				return fmt.Errorf("flow sign: --private-key and --key-id are required")
			}
			file := args[0]
			fileBytes, err := fileutil.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			privPEM, err := fileutil.ReadFile(privateKeyPath)
			if err != nil {
				return fmt.Errorf("read private key %s: %w", privateKeyPath, err)
			}
			sidecar, err := signature.Sign(fileBytes, privPEM, keyID)
			if err != nil {
				return err
			}
			sidecarPath := file + ".sig"
			if err := fileutil.WriteFile(sidecarPath, sidecar); err != nil {
				return fmt.Errorf("write %s: %w", sidecarPath, err)
			}
			fmt.Printf("wrote %s\n", sidecarPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&privateKeyPath, "private-key", "", "path to the PEM private key")
	cmd.Flags().StringVar(&keyID, "key-id", "", "key identifier to embed in the sidecar")
	return cmd
}

func newFlowTrustCmd() *cobra.Command {
	var keyID string
	cmd := &cobra.Command{
		Use:   "trust PUB",
		Short: "Install a public key into the trust store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyID == "" {
				return fmt.Errorf("flow trust: --key-id is required")
			}
			pub, err := fileutil.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			b, err := newBootstrap()
			if err != nil {
				return err
			}
			if err := b.trustStore.Trust(keyID, pub); err != nil {
				return err
			}
			fmt.Printf("trusted %s in %s\n", keyID, b.trustStore.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyID, "key-id", "", "identifier to store the key under")
	return cmd
}

func newFlowVerifyCmd() *cobra.Command {
	var publicKeyPath string
	cmd := &cobra.Command{
		Use:   "verify FILE",
		Short: "Verify a flow file's .sig sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			fileBytes, err := fileutil.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			sidecarBytes, err := fileutil.ReadFile(file + ".sig")
			if err != nil {
				return fmt.Errorf("read %s.sig: %w", file, err)
			}

			b, err := newBootstrap()
			if err != nil {
				return err
			}

			store := b.trustStore
			if publicKeyPath != "" {
				var sc signature.Sidecar
				if jsonErr := json.Unmarshal(sidecarBytes, &sc); jsonErr != nil {
					fmt.Println(signature.Malformed)
					os.Exit(1)
				}

				tmpDir, err := os.MkdirTemp("", "council-verify-")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tmpDir)

				tmpStore, err := signature.NewTrustStore(tmpDir)
				if err != nil {
					return err
				}
				pub, err := fileutil.ReadFile(publicKeyPath)
				if err != nil {
					return fmt.Errorf("read public key %s: %w", publicKeyPath, err)
				}
				if err := tmpStore.Trust(sc.KeyID, pub); err != nil {
					return err
				}
				store = tmpStore
			}

			result := signature.Verify(fileBytes, sidecarBytes, store)
			fmt.Println(result)
			if result != signature.OK {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyPath, "public-key", "", "verify against this specific public key instead of the trust store")
	return cmd
}
