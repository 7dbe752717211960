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


package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Singleton log writer. Writes to stdout, and optionally to a file.
// Does not add prefixes, or force newlines. Safe for concurrent use.

var logMutex  sync.Mutex

// The optional additional file to log into
var logFile   *bufio.Writer
var logFileOS *os.File

// Enables logging to file. Closes a previously opened log file, if any
func LogAlsoToFile(fileName string) (err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if err=closeLogFile(); err!=nil { return err }
	f, err:=os.OpenFile(fileName, os.O_CREATE | os.O_TRUNC | os.O_WRONLY, 0666)
	if err!=nil { return err }
	logFileOS=f
	logFile=bufio.NewWriter(logFileOS)
	return nil
}

// Flushes and closes the log file. Caller must hold logMutex
func closeLogFile() error {
	if logFile==nil { return nil }
	if err:=logFile.Flush(); err!=nil { return err }
	err:=logFileOS.Close()
	logFile, logFileOS=nil, nil
	return err
}

func LogPrint(args ...interface{}) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err=fmt.Print(args...)
	if err!=nil || logFile==nil { return n, err }
	return fmt.Fprint(logFile, args...)
}

func LogPrintln(args ...interface{}) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err=fmt.Println(args...)
	if err!=nil || logFile==nil { return n, err }
	return fmt.Fprintln(logFile, args...)
}

func LogPrintf(format string, args ...interface{}) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err=fmt.Printf(format, args...)
	if err!=nil || logFile==nil { return n, err }
	return fmt.Fprintf(logFile, format, args...)
}

func LogFatal(args ...interface{}) {
	logMutex.Lock()
	fmt.Println(args...)
	if logFile!=nil { 
		fmt.Fprintln(logFile, args...)
		closeLogFile()
	}
	os.Exit(1)
}

func LogFatalf(format string, args ...interface{}) {
	logMutex.Lock()
	fmt.Printf(format, args...)
	if logFile!=nil { 
		fmt.Fprintf(logFile, format, args...)
		closeLogFile()
	}
	os.Exit(1)
}

// Flushes pending log file output to disk
func LogSync() {
	logMutex.Lock()
	defer logMutex.Unlock()
	if logFile==nil { return }
	logFile.Flush()
	logFileOS.Sync()
}

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err=os.Stdout.Write(p)
	if err!=nil || logFile==nil { return n, err }
	return logFile.Write(p)
}

// Returns the singleton log as an io.Writer, for operator contexts
func LogWriter() io.Writer { return logWriter{} }
