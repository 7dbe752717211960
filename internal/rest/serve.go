// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"github.com/gin-gonic/gin"

	nl "github.com/mlnoga/blurbench/internal"
	"github.com/mlnoga/blurbench/internal/bench"
	"github.com/mlnoga/blurbench/internal/convolve"
	"github.com/mlnoga/blurbench/internal/kernel"
	"github.com/mlnoga/blurbench/internal/ops"
	"github.com/mlnoga/blurbench/internal/raster"
	"github.com/mlnoga/blurbench/web"
)

// Creates the HTTP handler for the given operator context
func NewRouter(ctx *ops.Context) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(nl.LogWriter()), gin.Recovery())
	r.MaxMultipartMemory = 64 << 20

	r.GET("/", func(c *gin.Context) { c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML) })
	r.StaticFS("/js", web.JavascriptFS())

	h:=&handlers{ctx: ctx}
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",   getPing)
			v1.GET ("/kernel", h.getKernel)
			v1.POST("/blur",   h.postBlur)
			v1.POST("/bench",  h.postBench)
			v1.POST("/job",    h.postJob)
		}
	}
	return r
}

// Listens and serves on the given address until failure
func Serve(addr string, ctx *ops.Context) error {
	nl.LogPrintf("Serving on %s\n", addr)
	return NewRouter(ctx).Run(addr)
}

type handlers struct {
	ctx *ops.Context
}

// Returns a shallow copy of the context for one request, confined to the sandbox
func (h *handlers) requestContext(log io.Writer) *ops.Context {
	rc:=*h.ctx
	rc.Log, rc.Sandbox=log, true
	return &rc
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Maps an error to a HTTP status code
func statusFor(err error) int {
	var se *convolve.ShapeError
	var de *raster.DecodeError
	if errors.As(err, &se) || errors.As(err, &de) { return http.StatusBadRequest }
	return http.StatusInternalServerError
}

type getKernelArgs struct {
	Sigma float64 `form:"sigma"`
}

// Returns the default kernel, or a Gaussian kernel for the given sigma
func (h *handlers) getKernel(c *gin.Context) {
	var args getKernelArgs
	if err:=c.ShouldBindQuery(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	k:=h.ctx.Kernel
	if args.Sigma!=0 {
		var err error
		if k, err=kernel.NewGaussian(args.Sigma); err!=nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
			return
		}
	}
	c.JSON(http.StatusOK, k)
}

type postBlurArgs struct {
	Passes int     `form:"passes,default=20"`
	Mode   string  `form:"mode,default=parallel"`
	Sigma  float64 `form:"sigma"`
	Format string  `form:"format"` // output format, defaults to the input format
}

// Blurs an uploaded image and returns the result in the requested format
func (h *handlers) postBlur(c *gin.Context) {
	var args postBlurArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	mode, err:=ops.ParseMode(args.Mode)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	if args.Sigma!=0 {
		if _, err:=kernel.GaussianSize(args.Sigma); err!=nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
			return
		}
	}
	fh, err:=c.FormFile("image")
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image: "+err.Error() } )
		return
	}
	inFormat, err:=raster.FormatFromFileName(fh.Filename)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	outFormat:=inFormat
	if args.Format!="" {
		if outFormat, err=raster.ParseFormat(args.Format); err!=nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
			return
		}
	}

	file, err:=fh.Open()
	if err!=nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error() } )
		return
	}
	defer file.Close()
	f, err:=raster.Decode(file, inFormat)
	if err!=nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error() } )
		return
	}
	f.FileName=fh.Filename

	rc:=h.requestContext(nl.LogWriter())
	if err:=rc.CheckMemory(f.Width, f.Height, 2); err!=nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error() } )
		return
	}
	out, err:=ops.NewOpBlur(mode, args.Passes, args.Sigma).Apply(f, rc)
	if err!=nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error() } )
		return
	}
	defer out.Release()

	c.Header("Content-Type", outFormat.ContentType())
	c.Status(http.StatusOK)
	if err:=out.Encode(c.Writer, outFormat); err!=nil {
		nl.LogPrintf("Error encoding response for %s: %s\n", fh.Filename, err.Error())
	}
}

type postBenchArgs struct {
	Width  int     `json:"width"  binding:"required,min=3"`
	Height int     `json:"height" binding:"required,min=3"`
	Passes int     `json:"passes" binding:"required,min=1"`
	Sigma  float64 `json:"sigma"`
}

// Benchmarks sequential against parallel passes on a random image, and returns the report
func (h *handlers) postBench(c *gin.Context) {
	var args postBenchArgs
	if err:=c.ShouldBindJSON(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	k:=h.ctx.Kernel
	if args.Sigma!=0 {
		size, err:=kernel.GaussianSize(args.Sigma)
		if err==nil { err=ops.CheckKernelFits(size, args.Width, args.Height) }
		if err==nil { k, err=kernel.NewGaussian(args.Sigma) }
		if err!=nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
			return
		}
	}
	if err:=h.ctx.CheckMemory(args.Width, args.Height, 4); err!=nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error() } )
		return
	}
	img:=raster.NewRandom(args.Width, args.Height, 8)
	defer img.Release()
	rep, err:=bench.Compare(img, k, args.Passes, h.ctx.Pool, nl.LogWriter())
	if err!=nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error() } )
		return
	}
	rep.Sequential.Output.Release()
	rep.Parallel.Output.Release()
	c.JSON(http.StatusOK, rep)
}

// Serializes writes from concurrent operators onto the response, flushing after each
type syncWriter struct {
	mu sync.Mutex
	w  gin.ResponseWriter
}

func (s *syncWriter) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err=s.w.Write(p)
	s.w.Flush()
	return n, err
}

// Runs a JSON operator graph in the sandbox and streams its log as plain text
func (h *handlers) postJob(c *gin.Context) {
	raw, err:=io.ReadAll(c.Request.Body)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	op, err:=ops.UnmarshalOperator(raw)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)
	logWriter:=&syncWriter{w: c.Writer}

	if err:=printArgs(logWriter, "Arguments:\n", "\n", op); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	rc:=h.requestContext(logWriter)
	promises, err:=op.MakePromises(nil, rc)
	if err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	if _, err=ops.MaterializeAll(promises, rc.MaxThreads, true); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		return
	}
	fmt.Fprintf(logWriter, "Done.\n")
}
