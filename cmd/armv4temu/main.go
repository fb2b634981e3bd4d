// Command armv4temu runs an ARMv4 machine image under the gdbtarget
// execution contract: the machine is driven through a target.Session
// exactly the way a remote protocol engine would drive it, with Ctrl-C
// routed through the session's interrupt poll point.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/remotedbg/gdbtarget/internal/emu"
	"github.com/remotedbg/gdbtarget/pkg/arch/armv4t"
	"github.com/remotedbg/gdbtarget/pkg/logflags"
	"github.com/remotedbg/gdbtarget/pkg/target"
)

var (
	logFlag   bool
	logOutput string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "armv4temu <machine.yml>",
		Short: "Run an ARMv4 machine image",
		Long: `Run an ARMv4 machine described by a YAML configuration file.

The machine executes until it exits (SWI #0), faults, or hits a BKPT
instruction. Breakpoints dump the register file and execution continues
past them. Ctrl-C interrupts a running machine through the same poll
point a debugger's interrupt packet would use.`,
		Args:          cobra.ExactArgs(1),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVar(&logFlag, "log", false, "enable logging")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "", "comma-separated list of layers to log (target,emu)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(logFlag, logOutput); err != nil {
		return err
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		logflags.SetOutput(colorable.NewColorableStderr())
	}

	cfg, err := emu.LoadConfig(args[0])
	if err != nil {
		return err
	}
	m, err := emu.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	sess := target.NewSession[uint32, *armv4t.Regs](m)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		for range ch {
			sess.RequestInterrupt()
		}
	}()

	for {
		stop, err := sess.Resume(target.ResumeAction{}, nil)
		if err != nil {
			return err
		}
		switch stop.Kind {
		case target.StopExited:
			fmt.Printf("machine exited with status %d\n", stop.Status)
			os.Exit(stop.Status)
		case target.StopSwBreak:
			regs, err := dumpRegs(sess)
			if err != nil {
				return err
			}
			fmt.Printf("breakpoint at %#08x, continuing\n", regs.PC)
			regs.PC += 4
			if err := sess.WriteRegisters(regs); err != nil {
				return err
			}
		case target.StopInterrupt:
			fmt.Println("interrupted")
			if _, err := dumpRegs(sess); err != nil {
				return err
			}
			return nil
		default:
			if _, err := dumpRegs(sess); err != nil {
				return err
			}
			return fmt.Errorf("machine stopped: %v", stop)
		}
	}
}

func dumpRegs(sess *target.Session[uint32, *armv4t.Regs]) (*armv4t.Regs, error) {
	regs := new(armv4t.Regs)
	if err := sess.ReadRegisters(regs); err != nil {
		return nil, err
	}
	for i, r := range regs.R {
		fmt.Printf("r%-2d  = %#08x\n", i, r)
	}
	fmt.Printf("sp   = %#08x\nlr   = %#08x\npc   = %#08x\ncpsr = %#08x\n",
		regs.SP, regs.LR, regs.PC, regs.CPSR)
	return regs, nil
}
