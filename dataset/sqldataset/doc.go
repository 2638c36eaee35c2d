/*
Package sqldataset loads labeled flow records from a table of an SQL
database to grow trees from.

The table is expected to have one column per schema feature, named after
it. Continuous features are read as REAL values and discrete ones, the
label included, as TEXT. NULL values stand for undefined ones.

SQLite3 database files and PostgreSQL databases are supported.
*/
package sqldataset
