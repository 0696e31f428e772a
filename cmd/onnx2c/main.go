// Command onnx2c compiles ONNX models ahead-of-time into static,
// dynamic-memory-free C suitable for microcontroller targets.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/onnx2c/onnx2c/internal/config"
	"github.com/onnx2c/onnx2c/internal/ir"
	"github.com/onnx2c/onnx2c/internal/logging"
	"github.com/onnx2c/onnx2c/internal/pipeline"
	"github.com/onnx2c/onnx2c/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "onnx2c [input.onnx]",
		Short:         "Ahead-of-time ONNX to C compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return cmd.Help()
			}
			return runCompile(viperFor(cmd), args[0])
		},
	}
	addCompileFlags(root)

	compile := &cobra.Command{
		Use:   "compile <input.onnx>",
		Short: "Compile a single ONNX model to C on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(viperFor(cmd), args[0])
		},
	}
	addCompileFlags(compile)

	compileAll := &cobra.Command{
		Use:   "compile-all <glob>",
		Short: "Compile every ONNX model matching a glob into --outdir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileAll(viperFor(cmd), args[0])
		},
	}
	addCompileFlags(compileAll)
	compileAll.Flags().String("outdir", ".", "directory to write generated .c files into")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the onnx2c compile daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(viperFor(cmd))
		},
	}
	serve.Flags().Int("http-port", 8088, "HTTP port for /compile, /healthz, /ws")
	serve.Flags().Int("grpc-port", 9088, "gRPC port for grpc.health.v1.Health")
	serve.Flags().String("watch", "", "recompile this file on change, broadcasting over /ws")
	serve.Flags().Duration("watch-interval", 2*time.Second, "poll interval for --watch")
	serve.Flags().IntP("log", "l", 2, "logging level, 0 (errors only) to 4 (trace)")
	serve.Flags().String("log-format", "console", "console or json")

	root.AddCommand(compile, compileAll, serve)
	return root
}

func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("quantize", "q", false, "quantize Conv/MatMul to their integer variants")
	cmd.Flags().BoolP("avr", "a", false, "target AVR: emit PROGMEM storage for initialized tensors")
	cmd.Flags().IntP("log", "l", 2, "logging level, 0 (errors only) to 4 (trace)")
	cmd.Flags().String("log-format", "console", "console or json")
	cmd.Flags().Bool("opt-fold-casts", true, "fold no-longer-needed Cast nodes into their producer")
	cmd.Flags().Bool("opt-unionize", true, "reuse non-overlapping tensor storage")
	cmd.Flags().Bool("no-globals", false, "move tensor storage into entry()'s frame instead of module scope")
	cmd.Flags().Bool("only-init", false, "emit only global tensor storage, no node bodies or entry()")
}

// viperFor binds a fresh viper instance to this specific command's already-
// parsed flag set, so ONNX2C_* env vars can override flags without two
// sibling commands (e.g. compile and compile-all) fighting over the same
// global binding.
func viperFor(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.BindPFlags(cmd.Flags())
	return v
}

func runCompile(v *viper.Viper, path string) error {
	cfg := config.Load(v)
	log := logging.New(cfg.LoggingLevel, cfg.LogFormat)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	out, err := pipeline.Compile(data, cfg, func(format string, args ...interface{}) {
		log.Warn().Msgf(format, args...)
	})
	if err != nil {
		if kind, ok := ir.KindOf(err); ok {
			log.Error().Str("kind", kind.String()).Msg(err.Error())
		}
		return err
	}

	fmt.Print(string(out))
	return nil
}

func runCompileAll(v *viper.Viper, pattern string) error {
	cfg := config.Load(v)
	log := logging.New(cfg.LoggingLevel, cfg.LogFormat)
	outdir := v.GetString("outdir")

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		log.Warn().Str("pattern", pattern).Msg("no files matched")
		return nil
	}

	var failures int
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			log.Error().Err(err).Str("file", m).Msg("read failed")
			failures++
			continue
		}
		out, err := pipeline.Compile(data, cfg, nil)
		if err != nil {
			log.Error().Err(err).Str("file", m).Msg("compile failed")
			failures++
			continue
		}
		name := strings.TrimSuffix(filepath.Base(m), filepath.Ext(m)) + ".c"
		dest := filepath.Join(outdir, name)
		if err := os.WriteFile(dest, out, 0o644); err != nil {
			log.Error().Err(err).Str("file", dest).Msg("write failed")
			failures++
			continue
		}
		log.Info().Str("src", m).Str("dest", dest).Msg("compiled")
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failures, len(matches))
	}
	return nil
}

func runServe(v *viper.Viper) error {
	cfg := config.Load(v)
	log := logging.New(cfg.LoggingLevel, cfg.LogFormat)
	httpPort := v.GetInt("http-port")
	grpcPort := v.GetInt("grpc-port")
	watchPath := v.GetString("watch")
	watchInterval := v.GetDuration("watch-interval")

	srv := server.New(log)

	grpcServer := grpc.NewServer()
	srv.RegisterGRPC(grpcServer)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	srv.RegisterHTTP(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watchPath != "" {
		go srv.Watch(ctx, watchPath, cfg, watchInterval)
		log.Info().Str("path", watchPath).Msg("watching for changes")
	}

	go func() {
		log.Info().Int("port", grpcPort).Msg("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", httpPort)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	cancel()
	grpcServer.GracefulStop()
	return nil
}
