package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/cli"
	"github.com/vjardin/grout/pkg/util"
)

var vlanCmd = &cobra.Command{
	Use:   "vlan",
	Short: "manage 802.1Q VLAN sub-interfaces",
}

func init() {
	var (
		mac string
		mtu uint16
	)
	addCmd := &cobra.Command{
		Use:   "add <parent-index> <vlan-id>[-<vlan-id>][,...]",
		Short: "create one or more VLAN sub-interfaces on a parent port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentIdx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			vlanIDs, err := util.ExpandVLANRange(args[1])
			if err != nil {
				return err
			}

			var created []int
			for _, id := range vlanIDs {
				var resp api.VLANAddResponse
				req := api.VLANAddRequest{ParentIndex: parentIdx, VLANID: uint16(id), MAC: mac, MTU: mtu}
				if err := app.client.Call("vlan_add", req, &resp); err != nil {
					return fmt.Errorf("vlan %d: %w", id, err)
				}
				created = append(created, int(resp.Index))
			}
			fmt.Printf("%s vlan(s) %s on parent %d (ids %s)\n", cli.Green("created"), util.CompactRange(created), parentIdx, args[1])
			return nil
		},
	}
	addCmd.Flags().StringVar(&mac, "mac", "", "multicast MAC to filter on the parent port")
	addCmd.Flags().Uint16Var(&mtu, "mtu", 0, "interface MTU")

	delCmd := &cobra.Command{
		Use:   "del <index>",
		Short: "destroy a VLAN sub-interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			if err := app.client.Call("vlan_del", api.VLANDelRequest{Index: idx}, nil); err != nil {
				return err
			}
			fmt.Printf("%s vlan %d\n", cli.Red("destroyed"), idx)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list all VLAN sub-interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.VLANListResponse
			if err := app.client.Call("vlan_list", api.VLANListRequest{}, &resp); err != nil {
				return err
			}
			t := cli.NewTable("INDEX", "PARENT", "VLAN_ID", "MAC")
			for _, v := range resp.VLANs {
				t.Row(fmt.Sprintf("%d", v.Index), fmt.Sprintf("%d", v.ParentIndex), fmt.Sprintf("%d", v.VLANID), v.MAC)
			}
			t.Flush()
			return nil
		},
	}

	vlanCmd.AddCommand(addCmd, delCmd, listCmd)
}
