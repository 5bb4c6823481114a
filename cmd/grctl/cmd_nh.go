package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/cli"
)

var nhCmd = &cobra.Command{
	Use:     "nh",
	Aliases: []string{"nexthop"},
	Short:   "manage the IPv4 next-hop table",
}

func init() {
	var (
		existOK   bool
		missingOK bool
	)
	addCmd := &cobra.Command{
		Use:   "add <host> <iface-index> <mac>",
		Short: "add a static reachable next hop",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ifaceID, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			req := api.NHAddRequest{Host: args[0], IfaceID: ifaceID, MAC: args[2], ExistOK: existOK}
			if err := app.client.Call("nh_add", req, nil); err != nil {
				return err
			}
			fmt.Printf("%s next hop %s\n", cli.Green("added"), args[0])
			return nil
		},
	}
	addCmd.Flags().BoolVar(&existOK, "exist-ok", false, "succeed if an identical next hop already exists")

	delCmd := &cobra.Command{
		Use:   "del <host>",
		Short: "delete a next hop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.NHDelRequest{Host: args[0], MissingOK: missingOK}
			if err := app.client.Call("nh_del", req, nil); err != nil {
				return err
			}
			fmt.Printf("%s next hop %s\n", cli.Red("deleted"), args[0])
			return nil
		},
	}
	delCmd.Flags().BoolVar(&missingOK, "missing-ok", false, "succeed if the next hop does not exist")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list all next hops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.NHListResponse
			if err := app.client.Call("nh_list", api.NHListRequest{}, &resp); err != nil {
				return err
			}
			t := cli.NewTable("HOST", "IFACE", "MAC", "FLAGS", "AGE")
			for _, nh := range resp.Nexthops {
				t.Row(nh.Host, fmt.Sprintf("%d", nh.IfaceID), nh.MAC, fmt.Sprintf("0x%x", nh.Flags), fmt.Sprintf("%d", nh.Age))
			}
			t.Flush()
			return nil
		},
	}

	nhCmd.AddCommand(addCmd, delCmd, listCmd)
}
