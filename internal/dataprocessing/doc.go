// Package dataprocessing cleans raw frames and answers questions about them.
//
// # Components
//
//  1. Cleaner: drops empty and constant columns, trims text, normalizes date
//     columns, imputes nulls and drops mostly-null columns. Every step is
//     recorded in a CleaningLog.
//  2. ColumnClassifier: decides whether a column is a date, numeric or
//     categorical from its name patterns and its values.
//  3. Profiler: dtypes, null percentages, unique counts and describe-style
//     statistics over a frame.
//  4. TypeCaster: converts columns to requested storage types.
//
// # Usage
//
//	cleaner, err := dataprocessing.NewCleaner(dataprocessing.DefaultCleaningConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	res, err := cleaner.Clean(ctx, frame)
//	if err != nil {
//	    return err
//	}
//	for _, msg := range res.Log.Messages() {
//	    fmt.Println(msg)
//	}
//
// Cleaning never mutates its input frame.
package dataprocessing
