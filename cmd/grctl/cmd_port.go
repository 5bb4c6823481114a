package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vjardin/grout/pkg/api"
	"github.com/vjardin/grout/pkg/cli"
	"github.com/vjardin/grout/pkg/util"
)

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "manage physical ports",
}

func init() {
	var (
		mtu     uint16
		nRxq    uint16
		nTxq    uint16
		rxqSize uint16
		mac     string
		up      bool
	)
	addCmd := &cobra.Command{
		Use:   "add <devargs>[,<devargs>...]",
		Short: "probe and configure one or more new ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mtu != 0 {
				if err := util.ValidateMTU(int(mtu)); err != nil {
					return err
				}
			}
			for _, devargs := range util.SplitCommaSeparated(args[0]) {
				var resp api.PortAddResponse
				req := api.PortAddRequest{Devargs: devargs, MTU: mtu, NRxq: nRxq, NTxq: nTxq, RxqSize: rxqSize, MAC: mac, Up: up}
				if err := app.client.Call("port_add", req, &resp); err != nil {
					return fmt.Errorf("%s: %w", devargs, err)
				}
				fmt.Printf("%s port %d (%s)\n", cli.Green("created"), resp.Index, devargs)
			}
			return nil
		},
	}
	addCmd.Flags().Uint16Var(&mtu, "mtu", 0, "interface MTU")
	addCmd.Flags().Uint16Var(&nRxq, "rxq", 0, "number of rx queues (0: a single rx queue)")
	addCmd.Flags().Uint16Var(&nTxq, "txq", 0, "number of tx queues (the port always gets one tx queue per worker, whatever this is set to)")
	addCmd.Flags().Uint16Var(&rxqSize, "rxq-size", 0, "rx/tx ring size (0: device default)")
	addCmd.Flags().StringVar(&mac, "mac", "", "override MAC address")
	addCmd.Flags().BoolVar(&up, "up", false, "bring the port up immediately")

	delCmd := &cobra.Command{
		Use:   "del <index>",
		Short: "destroy a port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			if err := app.client.Call("port_del", api.PortDelRequest{Index: idx}, nil); err != nil {
				return err
			}
			fmt.Printf("%s port %d\n", cli.Red("destroyed"), idx)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <index>",
		Short: "show one port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			var p api.PortInfo
			if err := app.client.Call("port_get", api.PortGetRequest{Index: idx}, &p); err != nil {
				return err
			}
			printPortTable([]api.PortInfo{p})
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list all ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.PortListResponse
			if err := app.client.Call("port_list", api.PortListRequest{}, &resp); err != nil {
				return err
			}
			printPortTable(resp.Ports)
			return nil
		},
	}

	portCmd.AddCommand(addCmd, delCmd, getCmd, listCmd)
}

func printPortTable(ports []api.PortInfo) {
	t := cli.NewTable("INDEX", "DEVARGS", "MTU", "MAC")
	for _, p := range ports {
		t.Row(fmt.Sprintf("%d", p.Index), p.Devargs, fmt.Sprintf("%d", p.MTU), p.MAC)
	}
	t.Flush()
}

func parseIndex(s string) (uint16, error) {
	var idx uint16
	_, err := fmt.Sscanf(s, "%d", &idx)
	return idx, err
}
